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

// Package arch provides the canonical, platform-independent CPU register
// snapshot constructed at fault time.
package arch

import (
	"fmt"

	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch/fpu"
)

// Context is the canonical i386 register snapshot (CONTEXT). Exactly one
// Context is built per fault; it is the single source of truth handed to
// the dispatcher, and the only state handler logic may mutate before the
// faulting thread resumes.
type Context struct {
	// FloatSave is populated only on the float fault path.
	FloatSave fpu.State

	// Segment registers.
	SegGs uint16
	SegFs uint16
	SegEs uint16
	SegDs uint16

	// Integer registers.
	Edi uint32
	Esi uint32
	Ebx uint32
	Edx uint32
	Ecx uint32
	Eax uint32

	// Control registers.
	Ebp    uint32
	Eip    uint32
	SegCs  uint16
	EFlags uint32
	Esp    uint32
	SegSs  uint16
}

// SingleStep returns true if the trap flag is set.
func (c *Context) SingleStep() bool {
	return c.EFlags&x86.EFLAGS_TF != 0
}

// SetSingleStep sets the trap flag.
func (c *Context) SetSingleStep() {
	c.EFlags |= x86.EFLAGS_TF
}

// ClearSingleStep clears the trap flag, so that a stepped instruction does
// not immediately re-trap on resume.
func (c *Context) ClearSingleStep() {
	c.EFlags &^= x86.EFLAGS_TF
}

// AlignmentCheck returns true if the alignment check flag is set.
func (c *Context) AlignmentCheck() bool {
	return c.EFlags&x86.EFLAGS_AC != 0
}

// ClearAlignmentCheck clears the alignment check flag.
func (c *Context) ClearAlignmentCheck() {
	c.EFlags &^= x86.EFLAGS_AC
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("eip=%#x esp=%#x eflags=%#x cs=%#x eax=%#x ebx=%#x ecx=%#x edx=%#x esi=%#x edi=%#x ebp=%#x",
		c.Eip, c.Esp, c.EFlags, c.SegCs, c.Eax, c.Ebx, c.Ecx, c.Edx, c.Esi, c.Edi, c.Ebp)
}
