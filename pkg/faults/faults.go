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

// Package faults classifies hardware trap codes into structured exception
// records and hands them to the upstream dispatcher.
//
// Classification is a ballistic transform: fault in, resume-or-escalate
// out. All per-fault state lives on the current call's stack, so handlers
// may be reentered freely; a Machine itself is immutable after New.
package faults

import (
	"time"

	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch"
	"sigbridge.dev/sigbridge/pkg/log"
)

// Dispatcher is the upstream exception dispatch logic. Raise is invoked
// exactly once per classified fault and may mutate the snapshot in place
// (for example, redirecting the instruction pointer) before returning. If
// the record is not continuable, returning from Raise is not meaningful
// and the dispatcher is expected to terminate the faulting context
// instead.
type Dispatcher interface {
	Raise(rec *nt.ExceptionRecord, ctx *arch.Context)
}

// Memory is the virtual-memory fault resolver. Resolve returns 0 if the
// fault at addr was resolved (nothing is raised), or the access-violation
// subcode to report. Resolve must be non-blocking.
type Memory interface {
	Resolve(addr uint32) nt.Code
}

// Emulator attempts single-instruction emulation for privileged or
// undecoded opcodes. TryEmulate returns true if the instruction was
// handled and the snapshot advanced past it.
type Emulator interface {
	TryEmulate(ctx *arch.Context) bool
}

// Options configures a Machine.
type Options struct {
	// Dispatcher receives every synthesized exception. Required.
	Dispatcher Dispatcher

	// Memory resolves page faults before they become user-visible. May be
	// nil on hosts that do not surface the faulting address.
	Memory Memory

	// Emulator handles privileged/undecoded instructions. May be nil.
	Emulator Emulator

	// Log overrides the logger for unexpected trap codes. Defaults to the
	// global logger.
	Log log.Logger
}

// Machine classifies faults. It is write-once: safe for concurrent use
// from any number of reentrant handler invocations.
type Machine struct {
	dispatcher Dispatcher
	memory     Memory
	emulator   Emulator

	// unexpected reports trap codes outside every table. Rate limited so
	// unknown hardware behavior cannot flood the log.
	unexpected log.Logger
}

// New returns a Machine using the given collaborators.
func New(opts Options) *Machine {
	if opts.Dispatcher == nil {
		panic("faults: Options.Dispatcher is required")
	}
	logger := opts.Log
	if logger == nil {
		logger = log.Log()
	}
	return &Machine{
		dispatcher: opts.Dispatcher,
		memory:     opts.Memory,
		emulator:   opts.Emulator,
		unexpected: log.RateLimitedLogger(logger, time.Second),
	}
}

// Raise hands rec to the dispatcher. Exposed for the vm86 monitor, which
// synthesizes its own records.
func (m *Machine) Raise(rec *nt.ExceptionRecord, ctx *arch.Context) {
	m.dispatcher.Raise(rec, ctx)
}

// Segv classifies memory and protection faults (the SIGSEGV, SIGILL and
// SIGBUS categories). hasFaultAddr reports whether the platform surfaces
// the faulting linear address; faultAddr and errCode are 0 when their
// platform does not provide them.
func (m *Machine) Segv(ctx *arch.Context, trap int, faultAddr uint32, hasFaultAddr bool, errCode uint32) {
	pageFaultCode := nt.EXCEPTION_ACCESS_VIOLATION

	// The page-fault case must be fast: give the virtual memory manager
	// first refusal before any classification.
	if hasFaultAddr && trap == x86.T_PAGEFLT && m.memory != nil {
		if pageFaultCode = m.memory.Resolve(faultAddr); pageFaultCode == 0 {
			return
		}
	}

	rec := nt.ExceptionRecord{
		Flags:   nt.EXCEPTION_CONTINUABLE,
		Address: ctx.Eip,
	}

	switch trap {
	case x86.T_OFLOW:
		rec.Code = nt.EXCEPTION_INT_OVERFLOW
	case x86.T_BOUND:
		rec.Code = nt.EXCEPTION_ARRAY_BOUNDS_EXCEEDED
	case x86.T_PRIVINFLT:
		rec.Code = nt.EXCEPTION_ILLEGAL_INSTRUCTION
	case x86.T_STKFLT:
		rec.Code = nt.EXCEPTION_STACK_OVERFLOW
	case x86.T_SEGNPFLT, x86.T_PROTFLT, x86.T_UNKNOWN:
		if m.emulator != nil && m.emulator.TryEmulate(ctx) {
			return
		}
		rec.Code = nt.EXCEPTION_PRIV_INSTRUCTION
	case x86.T_PAGEFLT:
		if hasFaultAddr {
			rec.NumberParameters = 2
			if errCode&x86.PFEC_WRITE != 0 {
				rec.Information[0] = 1
			}
			rec.Information[1] = faultAddr
		}
		rec.Code = pageFaultCode
	case x86.T_ALIGNFLT:
		if ctx.AlignmentCheck() {
			// Single-shot suppression: drop the AC flag and resume. A
			// second fault with the flag clear is reported normally.
			ctx.ClearAlignmentCheck()
			return
		}
		rec.Code = nt.EXCEPTION_DATATYPE_MISALIGNMENT
	case x86.T_NMI, x86.T_DNA, x86.T_DOUBLEFLT, x86.T_TSSFLT, x86.T_RESERVED, x86.T_MCHK, x86.T_CACHEFLT:
		rec.Code = nt.EXCEPTION_ILLEGAL_INSTRUCTION
	default:
		// Never drop a fault: unknown hardware behavior degrades to the
		// illegal-instruction arm above.
		m.unexpected.Warningf("got unexpected trap %s", x86.TrapString(trap))
		rec.Code = nt.EXCEPTION_ILLEGAL_INSTRUCTION
	}
	m.Raise(&rec, ctx)
}

// Trap classifies debug traps (the SIGTRAP category).
func (m *Machine) Trap(ctx *arch.Context, trap int) {
	rec := nt.ExceptionRecord{
		Flags:   nt.EXCEPTION_CONTINUABLE,
		Address: ctx.Eip,
	}

	switch trap {
	case x86.T_TRCTRAP:
		rec.Code = nt.EXCEPTION_SINGLE_STEP
		// Clear the trap flag so the stepped instruction does not
		// immediately re-trap.
		ctx.ClearSingleStep()
	case x86.T_BPTFLT:
		// Back up over the int3 instruction.
		rec.Address--
		rec.Code = nt.EXCEPTION_BREAKPOINT
	default:
		rec.Code = nt.EXCEPTION_BREAKPOINT
	}
	m.Raise(&rec, ctx)
}

// Fpe classifies arithmetic faults (the SIGFPE category). The snapshot's
// float block must have been captured before the call.
func (m *Machine) Fpe(ctx *arch.Context, trap int) {
	rec := nt.ExceptionRecord{
		Flags:   nt.EXCEPTION_CONTINUABLE,
		Address: ctx.Eip,
	}

	switch trap {
	case x86.T_DIVIDE:
		rec.Code = nt.EXCEPTION_INT_DIVIDE_BY_ZERO
	case x86.T_FPOPFLT:
		rec.Code = nt.EXCEPTION_FLT_INVALID_OPERATION
	case x86.T_ARITHTRAP, x86.T_UNKNOWN:
		rec.Code = ctx.FloatSave.Code()
	default:
		m.unexpected.Warningf("got unexpected trap %s", x86.TrapString(trap))
		rec.Code = nt.EXCEPTION_FLT_INVALID_OPERATION
	}
	m.Raise(&rec, ctx)
}

// Intr synthesizes the control-C exception for an explicit user interrupt.
func (m *Machine) Intr(ctx *arch.Context) {
	rec := nt.ExceptionRecord{
		Code:    nt.CONTROL_C_EXIT,
		Flags:   nt.EXCEPTION_CONTINUABLE,
		Address: ctx.Eip,
	}
	m.Raise(&rec, ctx)
}
