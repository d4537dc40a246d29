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

package fpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
)

func TestMaskPending(t *testing.T) {
	for _, tc := range []struct {
		name    string
		control uint32
		status  uint32
		want    uint32
	}{
		// All exceptions masked off in the control word: the low
		// exception bits are cleared, everything above bit 6 survives.
		{"all disabled", 0, x86.FSW_IE | x86.FSW_ZE | 0x3800, 0x3800},
		// An enabled exception bit stays pending.
		{"zero divide enabled", x86.FSW_ZE, x86.FSW_ZE | x86.FSW_PE, x86.FSW_ZE},
		// Bits 7 and up are never masked, whatever the control word.
		{"high bits survive", 0, 0xffffffff, 0xffffff80},
		{"quiet status", 0x037f, 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := State{ControlWord: tc.control, StatusWord: tc.status}
			s.MaskPending()
			if s.StatusWord != tc.want {
				t.Errorf("got status %#x, want %#x", s.StatusWord, tc.want)
			}
		})
	}
}

func TestCodePriority(t *testing.T) {
	// Multiple bits set at once: invalid-operation wins over everything,
	// then denormal, zero-divide, overflow, underflow, precision.
	for _, tc := range []struct {
		name   string
		status uint32
		want   nt.Code
	}{
		{"stack fault beats invalid", x86.FSW_IE | x86.FSW_SF | x86.FSW_ZE, nt.EXCEPTION_FLT_STACK_CHECK},
		{"invalid beats denormal", x86.FSW_IE | x86.FSW_DE, nt.EXCEPTION_FLT_INVALID_OPERATION},
		{"denormal beats zero divide", x86.FSW_DE | x86.FSW_ZE, nt.EXCEPTION_FLT_DENORMAL_OPERAND},
		{"zero divide beats overflow", x86.FSW_ZE | x86.FSW_OE, nt.EXCEPTION_FLT_DIVIDE_BY_ZERO},
		{"overflow beats underflow", x86.FSW_OE | x86.FSW_UE, nt.EXCEPTION_FLT_OVERFLOW},
		{"underflow beats inexact", x86.FSW_UE | x86.FSW_PE, nt.EXCEPTION_FLT_UNDERFLOW},
		{"inexact alone", x86.FSW_PE, nt.EXCEPTION_FLT_INEXACT_RESULT},
		{"nothing recognizable", 0x4000, nt.EXCEPTION_FLT_INVALID_OPERATION},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := State{StatusWord: tc.status}
			if got := s.Code(); got != tc.want {
				t.Errorf("status %#x: got %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestSaveFromHostArea(t *testing.T) {
	host := State{
		ControlWord: 0x037f,
		StatusWord:  x86.FSW_ZE,
		TagWord:     0xffff,
		Cr0NpxState: 0x1,
	}
	host.RegisterArea[0] = 0xaa
	host.RegisterArea[79] = 0x55

	var dst State
	Save(&dst, &host)
	if diff := cmp.Diff(host, dst); diff != "" {
		t.Errorf("saved state mismatch (-host +dst):\n%s", diff)
	}
}

func TestRestoreMasksBeforeWriteback(t *testing.T) {
	src := State{
		ControlWord: 0, // all exceptions disabled
		StatusWord:  x86.FSW_ZE | x86.FSW_PE,
	}
	var host State
	Restore(&src, &host)
	if host.StatusWord != 0 {
		t.Errorf("got host status %#x, want pending bits masked before writeback", host.StatusWord)
	}
	if src.StatusWord != 0 {
		t.Errorf("got source status %#x, want masked in place", src.StatusWord)
	}
}
