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

// Package sighandling installs the process-wide fault handlers.
//
// Installation bypasses the runtime's signal machinery entirely: the
// handler entry points are raw function pointers registered with the
// kernel, because fault translation must run below anything the runtime
// would interpose.
package sighandling

import (
	"fmt"

	"golang.org/x/sys/unix"

	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/teb"
)

// Handler registration flags. Handlers must restart interrupted system
// calls and must not mask their own signal, so that a fault inside a
// handler is still delivered rather than deadlocking the thread.
const (
	flagOnStack = 0x08000000
	flagRestart = 0x10000000
	flagNoDefer = 0x40000000
)

// Handlers holds the raw entry points for the fault signals. A zero
// entry leaves that signal's disposition untouched.
type Handlers struct {
	// Segv handles protection and memory faults (SIGSEGV, SIGILL,
	// SIGBUS).
	Segv uintptr

	// Trap handles debug traps (SIGTRAP).
	Trap uintptr

	// Fpe handles arithmetic faults (SIGFPE).
	Fpe uintptr

	// Intr handles keyboard interrupts (SIGINT).
	Intr uintptr
}

// installOrder is the fixed registration sequence. Interrupt and
// arithmetic handlers go in before the memory-fault family so that a
// fault raised mid-installation is never seen by a half-built table.
var installOrder = []unix.Signal{
	unix.SIGINT,
	unix.SIGFPE,
	unix.SIGSEGV,
	unix.SIGILL,
	unix.SIGBUS,
	unix.SIGTRAP,
}

func (h *Handlers) entry(sig unix.Signal) uintptr {
	switch sig {
	case unix.SIGSEGV, unix.SIGILL, unix.SIGBUS:
		return h.Segv
	case unix.SIGTRAP:
		return h.Trap
	case unix.SIGFPE:
		return h.Fpe
	case unix.SIGINT:
		return h.Intr
	}
	return 0
}

// Registration records one installed handler.
type Registration struct {
	Signal   unix.Signal
	Handler  uintptr
	Flags    uint64
	Previous uintptr
}

// Options configures Install.
type Options struct {
	// TLS supplies the alternate stack for fault delivery. If nil, or if
	// the stack cannot be installed, handlers run on the faulting
	// thread's own stack.
	TLS *teb.TEB

	// Handlers are the entry points to register.
	Handlers Handlers
}

// State is the write-once record of what Install did.
type State struct {
	altStack bool
	regs     map[unix.Signal]Registration
}

// AltStackEnabled reports whether faults are delivered on the dedicated
// alternate stack.
func (s *State) AltStackEnabled() bool {
	return s.altStack
}

// Registered returns the registration for sig, if Install made one.
func (s *State) Registered(sig unix.Signal) (Registration, bool) {
	r, ok := s.regs[sig]
	return r, ok
}

// Install registers the fault handlers with the kernel.
//
// A failed alternate-stack setup degrades with a warning; stack faults
// then crash the process instead of being reported, but everything else
// still works. A failed handler registration is fatal and aborts
// installation where it stands. Signals registered before the failure
// stay registered; the caller is expected to exit.
func Install(opts Options) (*State, error) {
	s := &State{regs: make(map[unix.Signal]Registration)}

	if opts.TLS != nil && len(opts.TLS.SignalStack) != 0 {
		if err := installAltStack(opts.TLS.SignalStack); err != nil {
			log.Warningf("cannot install alternate fault stack: %v", err)
		} else {
			s.altStack = true
		}
	}

	// Children are reaped elsewhere; stop their signals from ever being
	// delivered. Best effort.
	if err := ignoreChildren(); err != nil {
		log.Infof("cannot ignore SIGCHLD: %v", err)
	}

	flags := uint64(flagRestart | flagNoDefer)
	if s.altStack {
		flags |= flagOnStack
	}
	for _, sig := range installOrder {
		entry := opts.Handlers.entry(sig)
		if entry == 0 {
			continue
		}
		prev, err := replaceHandler(sig, entry, flags)
		if err != nil {
			return nil, fmt.Errorf("sighandling: registering handler for signal %d: %w", sig, err)
		}
		s.regs[sig] = Registration{
			Signal:   sig,
			Handler:  entry,
			Flags:    flags,
			Previous: prev,
		}
	}
	return s, nil
}
