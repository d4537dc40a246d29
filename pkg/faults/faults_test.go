// Copyright 2024 The sigbridge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package faults

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch"
)

// recorder captures everything Raise delivers.
type recorder struct {
	recs []nt.ExceptionRecord
}

func (r *recorder) Raise(rec *nt.ExceptionRecord, ctx *arch.Context) {
	r.recs = append(r.recs, *rec)
}

func (r *recorder) single(t *testing.T) nt.ExceptionRecord {
	t.Helper()
	if len(r.recs) != 1 {
		t.Fatalf("got %d records, want 1", len(r.recs))
	}
	return r.recs[0]
}

func newMachine(opts Options) (*Machine, *recorder) {
	r := &recorder{}
	opts.Dispatcher = r
	return New(opts), r
}

func TestSegvCodes(t *testing.T) {
	for _, tc := range []struct {
		trap int
		want nt.Code
	}{
		{x86.T_OFLOW, nt.EXCEPTION_INT_OVERFLOW},
		{x86.T_BOUND, nt.EXCEPTION_ARRAY_BOUNDS_EXCEEDED},
		{x86.T_PRIVINFLT, nt.EXCEPTION_ILLEGAL_INSTRUCTION},
		{x86.T_STKFLT, nt.EXCEPTION_STACK_OVERFLOW},
		{x86.T_SEGNPFLT, nt.EXCEPTION_PRIV_INSTRUCTION},
		{x86.T_PROTFLT, nt.EXCEPTION_PRIV_INSTRUCTION},
		{x86.T_UNKNOWN, nt.EXCEPTION_PRIV_INSTRUCTION},
		{x86.T_ALIGNFLT, nt.EXCEPTION_DATATYPE_MISALIGNMENT},
		{x86.T_NMI, nt.EXCEPTION_ILLEGAL_INSTRUCTION},
		{x86.T_DOUBLEFLT, nt.EXCEPTION_ILLEGAL_INSTRUCTION},
		{x86.T_MCHK, nt.EXCEPTION_ILLEGAL_INSTRUCTION},
		{42, nt.EXCEPTION_ILLEGAL_INSTRUCTION},
	} {
		t.Run(x86.TrapString(tc.trap), func(t *testing.T) {
			m, r := newMachine(Options{})
			ctx := &arch.Context{Eip: 0x401000}
			m.Segv(ctx, tc.trap, 0, false, 0)
			rec := r.single(t)
			if rec.Code != tc.want {
				t.Errorf("trap %s: got code %v, want %v", x86.TrapString(tc.trap), rec.Code, tc.want)
			}
			if rec.Address != 0x401000 {
				t.Errorf("got address %#x, want %#x", rec.Address, uint32(0x401000))
			}
			if rec.Flags != nt.EXCEPTION_CONTINUABLE {
				t.Errorf("got flags %#x, want continuable", rec.Flags)
			}
			if rec.NumberParameters != 0 {
				t.Errorf("got %d parameters, want 0", rec.NumberParameters)
			}
		})
	}
}

func TestPageFaultParameters(t *testing.T) {
	for _, tc := range []struct {
		name    string
		errCode uint32
		want    uint32
	}{
		{"read", x86.PFEC_USER, 0},
		{"write", x86.PFEC_USER | x86.PFEC_WRITE, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, r := newMachine(Options{})
			ctx := &arch.Context{Eip: 0x401000}
			m.Segv(ctx, x86.T_PAGEFLT, 0xdeadb000, true, tc.errCode)
			rec := r.single(t)
			if rec.Code != nt.EXCEPTION_ACCESS_VIOLATION {
				t.Fatalf("got code %v, want access violation", rec.Code)
			}
			if rec.NumberParameters != 2 {
				t.Fatalf("got %d parameters, want 2", rec.NumberParameters)
			}
			if rec.Information[0] != tc.want {
				t.Errorf("got access type %d, want %d", rec.Information[0], tc.want)
			}
			if rec.Information[1] != 0xdeadb000 {
				t.Errorf("got fault address %#x, want %#x", rec.Information[1], uint32(0xdeadb000))
			}
		})
	}
}

func TestPageFaultWithoutAddress(t *testing.T) {
	m, r := newMachine(Options{})
	m.Segv(&arch.Context{}, x86.T_PAGEFLT, 0, false, 0)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_ACCESS_VIOLATION {
		t.Errorf("got code %v, want access violation", rec.Code)
	}
	if rec.NumberParameters != 0 {
		t.Errorf("got %d parameters, want none without a fault address", rec.NumberParameters)
	}
}

// memoryFunc adapts a func to Memory.
type memoryFunc func(addr uint32) nt.Code

func (f memoryFunc) Resolve(addr uint32) nt.Code { return f(addr) }

func TestPageFaultResolved(t *testing.T) {
	var resolved []uint32
	m, r := newMachine(Options{
		Memory: memoryFunc(func(addr uint32) nt.Code {
			resolved = append(resolved, addr)
			return 0
		}),
	})
	m.Segv(&arch.Context{}, x86.T_PAGEFLT, 0x2000, true, x86.PFEC_WRITE)
	if len(r.recs) != 0 {
		t.Errorf("got %d records, want none for a resolved fault", len(r.recs))
	}
	if diff := cmp.Diff([]uint32{0x2000}, resolved); diff != "" {
		t.Errorf("resolver calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPageFaultGuardPage(t *testing.T) {
	m, r := newMachine(Options{
		Memory: memoryFunc(func(addr uint32) nt.Code {
			return nt.EXCEPTION_GUARD_PAGE
		}),
	})
	m.Segv(&arch.Context{}, x86.T_PAGEFLT, 0x2000, true, 0)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_GUARD_PAGE {
		t.Errorf("got code %v, want guard page", rec.Code)
	}
	if rec.NumberParameters != 2 {
		t.Errorf("got %d parameters, want 2", rec.NumberParameters)
	}
}

func TestAlignmentSuppression(t *testing.T) {
	m, r := newMachine(Options{})
	ctx := &arch.Context{EFlags: x86.EFLAGS_AC}

	// First fault with AC set: swallowed, flag dropped.
	m.Segv(ctx, x86.T_ALIGNFLT, 0, false, 0)
	if len(r.recs) != 0 {
		t.Fatalf("got %d records, want suppression on first alignment fault", len(r.recs))
	}
	if ctx.AlignmentCheck() {
		t.Error("alignment check flag still set after suppression")
	}

	// Second fault, flag now clear: reported.
	m.Segv(ctx, x86.T_ALIGNFLT, 0, false, 0)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_DATATYPE_MISALIGNMENT {
		t.Errorf("got code %v, want datatype misalignment", rec.Code)
	}
}

// emulatorFunc adapts a func to Emulator.
type emulatorFunc func(ctx *arch.Context) bool

func (f emulatorFunc) TryEmulate(ctx *arch.Context) bool { return f(ctx) }

func TestEmulatorFirst(t *testing.T) {
	m, r := newMachine(Options{
		Emulator: emulatorFunc(func(ctx *arch.Context) bool {
			ctx.Eip += 2 // skip the emulated instruction
			return true
		}),
	})
	ctx := &arch.Context{Eip: 0x401000}
	m.Segv(ctx, x86.T_PROTFLT, 0, false, 0)
	if len(r.recs) != 0 {
		t.Errorf("got %d records, want none when emulation succeeds", len(r.recs))
	}
	if ctx.Eip != 0x401002 {
		t.Errorf("got eip %#x, want advanced past the instruction", ctx.Eip)
	}
}

func TestEmulatorDeclines(t *testing.T) {
	m, r := newMachine(Options{
		Emulator: emulatorFunc(func(ctx *arch.Context) bool { return false }),
	})
	m.Segv(&arch.Context{}, x86.T_PROTFLT, 0, false, 0)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_PRIV_INSTRUCTION {
		t.Errorf("got code %v, want privileged instruction", rec.Code)
	}
}

func TestSingleStep(t *testing.T) {
	m, r := newMachine(Options{})
	ctx := &arch.Context{Eip: 0x401000}
	ctx.SetSingleStep()
	m.Trap(ctx, x86.T_TRCTRAP)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_SINGLE_STEP {
		t.Errorf("got code %v, want single step", rec.Code)
	}
	if rec.Address != 0x401000 {
		t.Errorf("got address %#x, want %#x", rec.Address, uint32(0x401000))
	}
	if ctx.SingleStep() {
		t.Error("trap flag still set; resuming would immediately re-trap")
	}
}

func TestBreakpoint(t *testing.T) {
	m, r := newMachine(Options{})
	ctx := &arch.Context{Eip: 0x401001}
	m.Trap(ctx, x86.T_BPTFLT)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_BREAKPOINT {
		t.Errorf("got code %v, want breakpoint", rec.Code)
	}
	// The record points at the int3 itself, one byte back.
	if rec.Address != 0x401000 {
		t.Errorf("got address %#x, want %#x", rec.Address, uint32(0x401000))
	}
	if ctx.Eip != 0x401001 {
		t.Errorf("snapshot eip changed to %#x, want untouched", ctx.Eip)
	}
}

func TestUnknownDebugTrap(t *testing.T) {
	m, r := newMachine(Options{})
	m.Trap(&arch.Context{Eip: 0x401000}, 42)
	rec := r.single(t)
	if rec.Code != nt.EXCEPTION_BREAKPOINT {
		t.Errorf("got code %v, want breakpoint", rec.Code)
	}
	if rec.Address != 0x401000 {
		t.Errorf("got address %#x, want the faulting eip", rec.Address)
	}
}

func TestFpeCodes(t *testing.T) {
	for _, tc := range []struct {
		name   string
		trap   int
		status uint32
		want   nt.Code
	}{
		{"integer divide", x86.T_DIVIDE, 0, nt.EXCEPTION_INT_DIVIDE_BY_ZERO},
		{"segment overrun", x86.T_FPOPFLT, 0, nt.EXCEPTION_FLT_INVALID_OPERATION},
		{"stack check", x86.T_ARITHTRAP, x86.FSW_IE | x86.FSW_SF, nt.EXCEPTION_FLT_STACK_CHECK},
		{"invalid operation", x86.T_ARITHTRAP, x86.FSW_IE, nt.EXCEPTION_FLT_INVALID_OPERATION},
		{"denormal", x86.T_ARITHTRAP, x86.FSW_DE, nt.EXCEPTION_FLT_DENORMAL_OPERAND},
		{"divide by zero", x86.T_ARITHTRAP, x86.FSW_ZE, nt.EXCEPTION_FLT_DIVIDE_BY_ZERO},
		{"overflow", x86.T_ARITHTRAP, x86.FSW_OE, nt.EXCEPTION_FLT_OVERFLOW},
		{"underflow", x86.T_ARITHTRAP, x86.FSW_UE, nt.EXCEPTION_FLT_UNDERFLOW},
		{"inexact", x86.T_ARITHTRAP, x86.FSW_PE, nt.EXCEPTION_FLT_INEXACT_RESULT},
		{"empty status", x86.T_ARITHTRAP, 0, nt.EXCEPTION_FLT_INVALID_OPERATION},
		{"no trap code", x86.T_UNKNOWN, x86.FSW_ZE, nt.EXCEPTION_FLT_DIVIDE_BY_ZERO},
		{"unexpected trap", 42, 0, nt.EXCEPTION_FLT_INVALID_OPERATION},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, r := newMachine(Options{})
			ctx := &arch.Context{Eip: 0x401000}
			ctx.FloatSave.StatusWord = tc.status
			m.Fpe(ctx, tc.trap)
			rec := r.single(t)
			if rec.Code != tc.want {
				t.Errorf("got code %v, want %v", rec.Code, tc.want)
			}
			if rec.NumberParameters != 0 {
				t.Errorf("got %d parameters, want 0", rec.NumberParameters)
			}
			if !rec.Continuable() {
				t.Error("arithmetic faults must be continuable")
			}
		})
	}
}

func TestIntr(t *testing.T) {
	m, r := newMachine(Options{})
	m.Intr(&arch.Context{Eip: 0x401000})
	rec := r.single(t)
	if rec.Code != nt.CONTROL_C_EXIT {
		t.Errorf("got code %v, want control-C exit", rec.Code)
	}
}

func TestDispatcherMayEditSnapshot(t *testing.T) {
	var m *Machine
	r := &redirector{target: 0x500000}
	m = New(Options{Dispatcher: r})
	ctx := &arch.Context{Eip: 0x401000}
	m.Segv(ctx, x86.T_OFLOW, 0, false, 0)
	if ctx.Eip != 0x500000 {
		t.Errorf("got eip %#x, want dispatcher redirect to %#x", ctx.Eip, r.target)
	}
}

type redirector struct {
	target uint32
}

func (r *redirector) Raise(rec *nt.ExceptionRecord, ctx *arch.Context) {
	ctx.Eip = r.target
}
