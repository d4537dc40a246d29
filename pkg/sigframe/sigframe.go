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

// Package sigframe converts between platform signal contexts and the
// portable register snapshot, and hosts the top-level fault handler
// bodies that tie the conversion to classification.
//
// The conversion is not a plain field copy. Building a snapshot also
// establishes a usable %fs for the handler itself, because the selector
// live at fault time may belong to 16-bit code, to legacy-mode
// execution, or be zero outright. And when the fault interrupted
// legacy-mode execution, the register source is the monitor's control
// block rather than the signal context.
package sigframe

import (
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch"
	"sigbridge.dev/sigbridge/pkg/arch/fpu"
	"sigbridge.dev/sigbridge/pkg/faults"
	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/sigcontext"
	"sigbridge.dev/sigbridge/pkg/teb"
	"sigbridge.dev/sigbridge/pkg/vm86"
)

// Options configures a Translator.
type Options struct {
	// TLS is the thread environment whose selectors back the %fs
	// fallback chain. Required.
	TLS *teb.TEB

	// Machine classifies the faults the handler bodies observe.
	// Required.
	Machine *faults.Machine

	// Monitor, if set, provides the control block consulted when a fault
	// interrupted legacy-mode execution.
	Monitor *vm86.Monitor

	// Log overrides the logger used for selector fallback warnings.
	Log log.Logger
}

// Translator builds portable snapshots from signal contexts and writes
// modified snapshots back.
type Translator struct {
	tls     *teb.TEB
	machine *faults.Machine
	monitor *vm86.Monitor
	log     log.Logger
}

// New returns a Translator.
func New(opts Options) *Translator {
	if opts.TLS == nil {
		panic("sigframe: Options.TLS is required")
	}
	if opts.Machine == nil {
		panic("sigframe: Options.Machine is required")
	}
	logger := opts.Log
	if logger == nil {
		logger = log.Log()
	}
	return &Translator{
		tls:     opts.TLS,
		machine: opts.Machine,
		monitor: opts.Monitor,
		log:     logger,
	}
}

// legacyBlock returns the active legacy-mode control block if the fault
// described by m interrupted legacy-mode execution, else nil. The test
// is exact: the fault must appear stopped at the published re-entry
// address with a system code selector.
func (t *Translator) legacyBlock(m sigcontext.Mapper) *vm86.ControlBlock {
	if t.monitor == nil {
		return nil
	}
	if !vm86.IsReturnAddress(m.IP()) || !x86.SelectorIsSystem(m.Segment(sigcontext.CS)) {
		return nil
	}
	return t.monitor.Block()
}

// setHandlerFS installs sel as the handler's %fs, substituting the
// emergency selector if sel is zero. A zero selector at this point means
// the faulting thread's environment is gone; the fault is still
// reported, but anything reached through %fs is the emergency
// environment's.
func (t *Translator) setHandlerFS(sel uint16) {
	if sel == 0 {
		sel = t.tls.EmergencySelector
		t.log.Warningf("fault handler has no thread environment, using emergency selector %#x", sel)
	}
	t.tls.SetFS(sel)
}

// Save builds a portable snapshot from the signal context and installs a
// usable %fs for the remainder of the handler.
//
// The snapshot records the %fs live at fault time, even when that value
// is unusable for the handler itself. The handler's own %fs comes from
// the fallback chain: the 16-bit thread selector when the fault arose in
// 16-bit code, the selector saved at legacy-mode entry when it arose in
// legacy mode, and the emergency selector when the result is zero.
func (t *Translator) Save(m sigcontext.Mapper) *arch.Context {
	ctx := &arch.Context{}
	fs := m.Segment(sigcontext.FS)
	ctx.SegFs = fs

	if !x86.SelectorIsSystem(m.Segment(sigcontext.CS)) {
		// 16-bit code: %fs at fault time belongs to the 16-bit world.
		fs = t.tls.Win16Selector
	} else if cb := t.legacyBlock(m); cb != nil {
		cb.CopyOut(ctx)
		t.setHandlerFS(cb.SavedFS)
		return ctx
	}
	t.setHandlerFS(fs)

	ctx.Eax = m.General(sigcontext.EAX)
	ctx.Ebx = m.General(sigcontext.EBX)
	ctx.Ecx = m.General(sigcontext.ECX)
	ctx.Edx = m.General(sigcontext.EDX)
	ctx.Esi = m.General(sigcontext.ESI)
	ctx.Edi = m.General(sigcontext.EDI)
	ctx.Ebp = m.General(sigcontext.EBP)
	ctx.EFlags = m.Flags()
	ctx.Eip = m.IP()
	ctx.Esp = m.SP()
	ctx.SegCs = m.Segment(sigcontext.CS)
	ctx.SegDs = m.Segment(sigcontext.DS)
	ctx.SegEs = m.Segment(sigcontext.ES)
	ctx.SegGs = m.Segment(sigcontext.GS)
	ctx.SegSs = m.Segment(sigcontext.SS)
	return ctx
}

// Restore writes the snapshot back into the signal context, so that any
// register edits made during classification take effect on resume. If
// the fault interrupted legacy-mode execution the snapshot goes to the
// monitor's control block instead; the signal context still resumes at
// the re-entry address, which re-enters legacy mode with the edited
// image.
func (t *Translator) Restore(ctx *arch.Context, m sigcontext.Mapper) {
	if cb := t.legacyBlock(m); cb != nil {
		cb.CopyIn(ctx)
		return
	}

	m.SetGeneral(sigcontext.EAX, ctx.Eax)
	m.SetGeneral(sigcontext.EBX, ctx.Ebx)
	m.SetGeneral(sigcontext.ECX, ctx.Ecx)
	m.SetGeneral(sigcontext.EDX, ctx.Edx)
	m.SetGeneral(sigcontext.ESI, ctx.Esi)
	m.SetGeneral(sigcontext.EDI, ctx.Edi)
	m.SetGeneral(sigcontext.EBP, ctx.Ebp)
	m.SetFlags(ctx.EFlags)
	m.SetIP(ctx.Eip)
	m.SetSP(ctx.Esp)
	m.SetSegment(sigcontext.CS, ctx.SegCs)
	m.SetSegment(sigcontext.DS, ctx.SegDs)
	m.SetSegment(sigcontext.ES, ctx.SegEs)
	m.SetSegment(sigcontext.FS, ctx.SegFs)
	m.SetSegment(sigcontext.GS, ctx.SegGs)
	m.SetSegment(sigcontext.SS, ctx.SegSs)
}

// Segv is the handler body for protection and memory faults.
func (t *Translator) Segv(m sigcontext.Mapper) {
	ctx := t.Save(m)
	addr, ok := m.FaultAddr()
	t.machine.Segv(ctx, m.TrapNo(), addr, ok, m.ErrorCode())
	t.Restore(ctx, m)
}

// Trap is the handler body for debug traps.
func (t *Translator) Trap(m sigcontext.Mapper) {
	ctx := t.Save(m)
	t.machine.Trap(ctx, m.TrapNo())
	t.Restore(ctx, m)
}

// Fpe is the handler body for arithmetic faults. Unlike the other
// bodies it transfers the coprocessor state both ways, since the
// classifier reads the status word and the dispatcher may edit the
// state.
func (t *Translator) Fpe(m sigcontext.Mapper) {
	ctx := t.Save(m)
	fpu.Save(&ctx.FloatSave, m.FloatState())
	t.machine.Fpe(ctx, m.TrapNo())
	fpu.Restore(&ctx.FloatSave, m.FloatState())
	t.Restore(ctx, m)
}

// Intr is the handler body for keyboard interrupts.
func (t *Translator) Intr(m sigcontext.Mapper) {
	ctx := t.Save(m)
	t.machine.Intr(ctx)
	t.Restore(ctx, m)
}
