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

// Package sigcontext provides access to the raw, kernel-defined signal
// context delivered with a hardware fault.
//
// Each supported host kernel has its own context layout, selected at build
// time; callers depend only on the Mapper interface. The raw context is
// owned by the kernel for the duration of the handler invocation and never
// escapes this subsystem.
package sigcontext

import "sigbridge.dev/sigbridge/pkg/arch/fpu"

// Reg names a general-purpose register.
type Reg int

// General-purpose registers. The stack pointer is accessed separately via
// Mapper.SP.
const (
	EAX Reg = iota
	EBX
	ECX
	EDX
	ESI
	EDI
	EBP

	// NumRegs is the number of Reg values.
	NumRegs
)

// Seg names a segment register.
type Seg int

// Segment registers.
const (
	CS Seg = iota
	DS
	ES
	FS
	GS
	SS

	// NumSegs is the number of Seg values.
	NumSegs
)

// Mapper reads and writes the named CPU fields of a raw signal context.
// Implementations have no side effects beyond the requested access.
type Mapper interface {
	// General returns the value of r at fault time.
	General(r Reg) uint32

	// SetGeneral sets the value r will hold when the thread resumes.
	SetGeneral(r Reg, v uint32)

	// Segment returns the selector loaded in s at fault time.
	Segment(s Seg) uint16

	// SetSegment sets the selector s will hold when the thread resumes.
	SetSegment(s Seg, v uint16)

	// Flags returns the flags register.
	Flags() uint32

	// SetFlags sets the flags register.
	SetFlags(v uint32)

	// IP returns the faulting instruction pointer.
	IP() uint32

	// SetIP sets the instruction pointer the thread resumes at.
	SetIP(v uint32)

	// SP returns the stack pointer at fault time.
	SP() uint32

	// SetSP sets the stack pointer.
	SetSP(v uint32)

	// TrapNo returns the hardware trap code, or x86.T_UNKNOWN if the
	// kernel does not surface one.
	TrapNo() int

	// ErrorCode returns the hardware error code, or 0 if unavailable.
	ErrorCode() uint32

	// FaultAddr returns the faulting linear address (CR2) and whether the
	// kernel surfaces it.
	FaultAddr() (uint32, bool)

	// FloatState returns the float save area embedded in (or referenced
	// by) the context, or nil if the kernel does not provide one.
	FloatState() *fpu.State
}
