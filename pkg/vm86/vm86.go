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

// Package vm86 drives virtual-8086 (legacy real-mode) execution and
// intercepts every fault raised while in that mode.
//
// The monitor models legacy execution as perpetually active: Enter never
// returns to its caller except on an entry primitive error. Faults inside
// legacy mode are funneled through the same classifier as ordinary
// faults, but with snapshot construction and restoration redirected to
// the monitor's control block instead of the raw signal context.
package vm86

import (
	"sync/atomic"
	"time"

	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch"
	"sigbridge.dev/sigbridge/pkg/faults"
	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/teb"
)

// Outcomes of the legacy-mode entry primitive, matching the Linux vm86
// interface (asm/vm86.h).
const (
	// VM86_SIGNAL reports interruption by an unrelated signal; the
	// monitor re-enters legacy mode without producing any exception.
	VM86_SIGNAL = 0

	// VM86_UNKNOWN reports an unhandled protection fault, typically a
	// privileged I/O instruction.
	VM86_UNKNOWN = 1

	// VM86_INTx reports an int3/int x instruction (Arg = x).
	VM86_INTx = 2

	// VM86_STI reports that sti/popf/iret enabled virtual interrupts.
	VM86_STI = 3

	// VM86_PICRETURN reports a return due to a pending PIC request.
	VM86_PICRETURN = 4

	// VM86_TRAP reports a debugger-requested trap (Arg = trap code).
	VM86_TRAP = 6
)

// Type extracts the outcome type from an entry primitive result.
func Type(ret int) int { return ret & 0xff }

// Arg extracts the outcome argument from an entry primitive result.
func Arg(ret int) int { return ret >> 8 }

// Monitor states.
const (
	// Idle indicates no legacy execution is active.
	Idle uint32 = iota

	// Running indicates the thread is executing in legacy mode.
	Running

	// Trapped indicates a legacy-mode fault is being classified.
	Trapped

	// Terminated indicates the monitor loop has exited.
	Terminated
)

// Regs is the register image exchanged with legacy mode.
type Regs struct {
	Eax    uint32
	Ebx    uint32
	Ecx    uint32
	Edx    uint32
	Esi    uint32
	Edi    uint32
	Esp    uint32
	Ebp    uint32
	Eip    uint32
	Cs     uint16
	Ds     uint16
	Es     uint16
	Fs     uint16
	Gs     uint16
	Ss     uint16
	EFlags uint32
}

// ControlBlock is the per-entry state owned by the monitor loop. While
// legacy mode is active, the block (not the raw signal context) is the
// authoritative register source for fault normalization.
type ControlBlock struct {
	// Regs is the legacy-mode register image.
	Regs Regs

	// SavedFS is the flat selector to reload for handler execution while
	// legacy mode is active.
	SavedFS uint16

	// Context is the invoking snapshot this block was seeded from.
	Context *arch.Context
}

// CopyIn seeds the block's register image from the snapshot.
func (cb *ControlBlock) CopyIn(ctx *arch.Context) {
	cb.Regs = Regs{
		Eax:    ctx.Eax,
		Ebx:    ctx.Ebx,
		Ecx:    ctx.Ecx,
		Edx:    ctx.Edx,
		Esi:    ctx.Esi,
		Edi:    ctx.Edi,
		Esp:    ctx.Esp,
		Ebp:    ctx.Ebp,
		Eip:    ctx.Eip,
		Cs:     ctx.SegCs,
		Ds:     ctx.SegDs,
		Es:     ctx.SegEs,
		Fs:     ctx.SegFs,
		Gs:     ctx.SegGs,
		Ss:     ctx.SegSs,
		EFlags: ctx.EFlags,
	}
}

// CopyOut publishes the block's register image into the snapshot.
func (cb *ControlBlock) CopyOut(ctx *arch.Context) {
	ctx.Eax = cb.Regs.Eax
	ctx.Ebx = cb.Regs.Ebx
	ctx.Ecx = cb.Regs.Ecx
	ctx.Edx = cb.Regs.Edx
	ctx.Esi = cb.Regs.Esi
	ctx.Edi = cb.Regs.Edi
	ctx.Esp = cb.Regs.Esp
	ctx.Ebp = cb.Regs.Ebp
	ctx.Eip = cb.Regs.Eip
	ctx.SegCs = cb.Regs.Cs
	ctx.SegDs = cb.Regs.Ds
	ctx.SegEs = cb.Regs.Es
	ctx.SegFs = cb.Regs.Fs
	ctx.SegGs = cb.Regs.Gs
	ctx.SegSs = cb.Regs.Ss
	ctx.EFlags = cb.Regs.EFlags
}

// Entry is the legacy-mode entry primitive. It runs the block's register
// image in legacy mode until the kernel bounces back, returning the raw
// outcome word. A non-nil error is a host error and terminates the
// monitor loop.
type Entry func(cb *ControlBlock) (int, error)

// returnAddress is the single well-known address at which a faulting
// thread appears stopped while legacy mode is in flight. Fault handlers
// recognize "fault happened inside legacy mode" purely by comparing the
// faulting instruction pointer against this value; the mechanism is
// deliberate and must not be replaced by a broader heuristic.
var returnAddress atomic.Uint32

// ReturnAddress returns the legacy-mode re-entry address, or 0 if no
// entry shim has published one.
func ReturnAddress() uint32 {
	return returnAddress.Load()
}

// SetReturnAddress publishes the legacy-mode re-entry address. Called
// once by the platform entry shim at startup; tests install their own.
func SetReturnAddress(addr uint32) {
	returnAddress.Store(addr)
}

// IsReturnAddress returns true if ip is the published re-entry address.
func IsReturnAddress(ip uint32) bool {
	addr := returnAddress.Load()
	return addr != 0 && ip == addr
}

// Options configures a Monitor.
type Options struct {
	// Machine classifies faults intercepted in legacy mode. Required.
	Machine *faults.Machine

	// Entry is the legacy-mode entry primitive. Defaults to the host
	// primitive, which not every platform provides.
	Entry Entry

	// TLS, if set, supplies the flat selector saved at mode entry.
	TLS *teb.TEB

	// Log overrides the logger for unexpected outcomes.
	Log log.Logger
}

// Monitor owns one thread's legacy-mode execution.
type Monitor struct {
	machine    *faults.Machine
	entry      Entry
	tls        *teb.TEB
	unexpected log.Logger

	state  atomic.Uint32
	active atomic.Pointer[ControlBlock]
}

// New returns an idle Monitor.
func New(opts Options) *Monitor {
	if opts.Machine == nil {
		panic("vm86: Options.Machine is required")
	}
	entry := opts.Entry
	if entry == nil {
		entry = hostEntry
	}
	logger := opts.Log
	if logger == nil {
		logger = log.Log()
	}
	return &Monitor{
		machine:    opts.Machine,
		entry:      entry,
		tls:        opts.TLS,
		unexpected: log.RateLimitedLogger(logger, time.Second),
	}
}

// State returns the monitor state.
func (m *Monitor) State() uint32 {
	return m.state.Load()
}

// Block returns the active control block, or nil when no legacy
// execution is in flight. Handlers call this after matching the faulting
// instruction pointer against ReturnAddress.
func (m *Monitor) Block() *ControlBlock {
	return m.active.Load()
}

// Enter switches to legacy-mode execution with the register image in
// ctx. It loops forever, re-entering legacy mode after every classified
// fault, and returns only if the entry primitive reports a host error;
// an external control-flow exception raised by the dispatcher is the
// intended way out.
func (m *Monitor) Enter(ctx *arch.Context) error {
	cb := &ControlBlock{Context: ctx}
	if m.tls != nil {
		cb.SavedFS = m.tls.FS
	}
	m.active.Store(cb)
	defer func() {
		m.active.Store(nil)
		m.state.Store(Terminated)
	}()

	for {
		cb.CopyIn(ctx)

		var ret int
		for {
			var err error
			m.state.Store(Running)
			ret, err = m.entry(cb)
			if err != nil {
				return err
			}
			if Type(ret) != VM86_SIGNAL {
				break
			}
			// Interrupted by an unrelated signal; nothing to report.
		}
		m.state.Store(Trapped)

		// The block is authoritative even for terminal outcomes.
		cb.CopyOut(ctx)

		var code nt.Code
		switch Type(ret) {
		case VM86_UNKNOWN:
			m.machine.Segv(ctx, x86.T_PROTFLT, 0, false, 0)
			continue
		case VM86_TRAP:
			m.machine.Trap(ctx, Arg(ret))
			continue
		case VM86_INTx:
			code = nt.EXCEPTION_VM86_INTx
		case VM86_STI:
			code = nt.EXCEPTION_VM86_STI
		case VM86_PICRETURN:
			code = nt.EXCEPTION_VM86_PICRETURN
		default:
			m.unexpected.Warningf("unhandled result from legacy mode %#x", ret)
			continue
		}

		rec := nt.ExceptionRecord{
			Code:             code,
			Flags:            nt.EXCEPTION_CONTINUABLE,
			Address:          ctx.Eip,
			NumberParameters: 1,
		}
		rec.Information[0] = uint32(Arg(ret))
		m.machine.Raise(&rec, ctx)
	}
}
