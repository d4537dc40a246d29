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

// Package fpu provides the floating point state block and the transfer of
// that state between the kernel signal context, the processor and the
// canonical register snapshot.
package fpu

import (
	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
)

// State is the x87 FNSAVE area (FLOATING_SAVE_AREA): environment, register
// stack and the Cr0NpxState extension. 108 bytes of hardware layout plus
// the trailing word.
type State struct {
	ControlWord   uint32
	StatusWord    uint32
	TagWord       uint32
	ErrorOffset   uint32
	ErrorSelector uint32
	DataOffset    uint32
	DataSelector  uint32
	RegisterArea  [80]byte
	Cr0NpxState   uint32
}

// Save captures the floating point state into dst. If the kernel surfaced
// a float area in the signal context (host != nil), that copy is
// authoritative; otherwise the state is read from the processor, which
// still holds it since the fault.
func Save(dst *State, host *State) {
	if host != nil {
		*dst = *host
		return
	}
	hostSave(dst)
}

// Restore writes the floating point state in src back, after masking
// pending exception bits, either into the kernel-provided area or directly
// into the processor.
//
// Restore must bracket only the float classification path: restoring while
// a handler may still execute floating point instructions of its own would
// race with the processor state.
func Restore(src *State, host *State) {
	src.MaskPending()
	if host != nil {
		*host = *src
		return
	}
	hostRestore(src)
}

// MaskPending clears status word exception bits that are not enabled in
// the control word, so that an already-acknowledged condition does not
// retrigger when the state is loaded back.
func (s *State) MaskPending() {
	s.StatusWord &= s.ControlWord | 0xffffff80
}

// Code derives the float exception code from the status word. Bits are
// checked in priority order; a status word with no recognizable bit yields
// the generic invalid-operation code.
func (s *State) Code() nt.Code {
	status := s.StatusWord
	switch {
	case status&x86.FSW_IE != 0:
		if status&x86.FSW_SF != 0 {
			return nt.EXCEPTION_FLT_STACK_CHECK
		}
		return nt.EXCEPTION_FLT_INVALID_OPERATION
	case status&x86.FSW_DE != 0:
		return nt.EXCEPTION_FLT_DENORMAL_OPERAND
	case status&x86.FSW_ZE != 0:
		return nt.EXCEPTION_FLT_DIVIDE_BY_ZERO
	case status&x86.FSW_OE != 0:
		return nt.EXCEPTION_FLT_OVERFLOW
	case status&x86.FSW_UE != 0:
		return nt.EXCEPTION_FLT_UNDERFLOW
	case status&x86.FSW_PE != 0:
		return nt.EXCEPTION_FLT_INEXACT_RESULT
	default:
		return nt.EXCEPTION_FLT_INVALID_OPERATION
	}
}
