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

// Package nt contains the structured-exception ABI: NT status codes used as
// exception codes, the exception record layout, and the associated flags.
//
// The values here are fixed by the Windows ABI and must not change.
package nt

import "fmt"

// Code is an NT exception code (an NTSTATUS value).
type Code uint32

// Exception codes, from winnt.h.
const (
	EXCEPTION_GUARD_PAGE            Code = 0x80000001
	EXCEPTION_DATATYPE_MISALIGNMENT Code = 0x80000002
	EXCEPTION_BREAKPOINT            Code = 0x80000003
	EXCEPTION_SINGLE_STEP           Code = 0x80000004
	EXCEPTION_ACCESS_VIOLATION      Code = 0xc0000005
	EXCEPTION_IN_PAGE_ERROR         Code = 0xc0000006
	EXCEPTION_ILLEGAL_INSTRUCTION   Code = 0xc000001d
	EXCEPTION_NONCONT_EXCEPTION     Code = 0xc0000025
	EXCEPTION_INVALID_DISPOSITION   Code = 0xc0000026
	EXCEPTION_ARRAY_BOUNDS_EXCEEDED Code = 0xc000008c
	EXCEPTION_FLT_DENORMAL_OPERAND  Code = 0xc000008d
	EXCEPTION_FLT_DIVIDE_BY_ZERO    Code = 0xc000008e
	EXCEPTION_FLT_INEXACT_RESULT    Code = 0xc000008f
	EXCEPTION_FLT_INVALID_OPERATION Code = 0xc0000090
	EXCEPTION_FLT_OVERFLOW          Code = 0xc0000091
	EXCEPTION_FLT_STACK_CHECK       Code = 0xc0000092
	EXCEPTION_FLT_UNDERFLOW         Code = 0xc0000093
	EXCEPTION_INT_DIVIDE_BY_ZERO    Code = 0xc0000094
	EXCEPTION_INT_OVERFLOW          Code = 0xc0000095
	EXCEPTION_PRIV_INSTRUCTION      Code = 0xc0000096
	EXCEPTION_STACK_OVERFLOW        Code = 0xc00000fd
	CONTROL_C_EXIT                  Code = 0xc000013a
)

// Extension codes for events raised out of virtual-8086 mode. These live
// in the customer reserved bit space, outside winnt.h.
const (
	EXCEPTION_VM86_INTx      Code = 0x80000110
	EXCEPTION_VM86_STI       Code = 0x80000111
	EXCEPTION_VM86_PICRETURN Code = 0x80000112
)

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case EXCEPTION_GUARD_PAGE:
		return "EXCEPTION_GUARD_PAGE"
	case EXCEPTION_DATATYPE_MISALIGNMENT:
		return "EXCEPTION_DATATYPE_MISALIGNMENT"
	case EXCEPTION_BREAKPOINT:
		return "EXCEPTION_BREAKPOINT"
	case EXCEPTION_SINGLE_STEP:
		return "EXCEPTION_SINGLE_STEP"
	case EXCEPTION_ACCESS_VIOLATION:
		return "EXCEPTION_ACCESS_VIOLATION"
	case EXCEPTION_IN_PAGE_ERROR:
		return "EXCEPTION_IN_PAGE_ERROR"
	case EXCEPTION_ILLEGAL_INSTRUCTION:
		return "EXCEPTION_ILLEGAL_INSTRUCTION"
	case EXCEPTION_ARRAY_BOUNDS_EXCEEDED:
		return "EXCEPTION_ARRAY_BOUNDS_EXCEEDED"
	case EXCEPTION_FLT_DENORMAL_OPERAND:
		return "EXCEPTION_FLT_DENORMAL_OPERAND"
	case EXCEPTION_FLT_DIVIDE_BY_ZERO:
		return "EXCEPTION_FLT_DIVIDE_BY_ZERO"
	case EXCEPTION_FLT_INEXACT_RESULT:
		return "EXCEPTION_FLT_INEXACT_RESULT"
	case EXCEPTION_FLT_INVALID_OPERATION:
		return "EXCEPTION_FLT_INVALID_OPERATION"
	case EXCEPTION_FLT_OVERFLOW:
		return "EXCEPTION_FLT_OVERFLOW"
	case EXCEPTION_FLT_STACK_CHECK:
		return "EXCEPTION_FLT_STACK_CHECK"
	case EXCEPTION_FLT_UNDERFLOW:
		return "EXCEPTION_FLT_UNDERFLOW"
	case EXCEPTION_INT_DIVIDE_BY_ZERO:
		return "EXCEPTION_INT_DIVIDE_BY_ZERO"
	case EXCEPTION_INT_OVERFLOW:
		return "EXCEPTION_INT_OVERFLOW"
	case EXCEPTION_PRIV_INSTRUCTION:
		return "EXCEPTION_PRIV_INSTRUCTION"
	case EXCEPTION_STACK_OVERFLOW:
		return "EXCEPTION_STACK_OVERFLOW"
	case CONTROL_C_EXIT:
		return "CONTROL_C_EXIT"
	case EXCEPTION_VM86_INTx:
		return "EXCEPTION_VM86_INTx"
	case EXCEPTION_VM86_STI:
		return "EXCEPTION_VM86_STI"
	case EXCEPTION_VM86_PICRETURN:
		return "EXCEPTION_VM86_PICRETURN"
	default:
		return fmt.Sprintf("Code(%#x)", uint32(c))
	}
}

// Exception flags.
const (
	EXCEPTION_CONTINUABLE    = 0
	EXCEPTION_NONCONTINUABLE = 0x01
)

// EXCEPTION_MAXIMUM_PARAMETERS is the capacity of
// ExceptionRecord.Information.
const EXCEPTION_MAXIMUM_PARAMETERS = 15

// ExceptionRecord is the structured exception descriptor handed to the
// dispatcher, equivalent to EXCEPTION_RECORD. A record is synthesized fresh
// for every fault and consumed immediately; it is never persisted.
type ExceptionRecord struct {
	// Code identifies the exception.
	Code Code

	// Flags holds EXCEPTION_CONTINUABLE or EXCEPTION_NONCONTINUABLE.
	Flags uint32

	// Record chains nested exceptions; nil for a first-level fault.
	Record *ExceptionRecord

	// Address is the faulting instruction address.
	Address uint32

	// NumberParameters is the count of valid entries in Information.
	NumberParameters uint32

	// Information holds the typed parameters for codes that carry them
	// (page faults, vm86 events).
	Information [EXCEPTION_MAXIMUM_PARAMETERS]uint32
}

// Continuable returns true if resuming at the (possibly adjusted)
// instruction pointer is a meaningful outcome.
func (r *ExceptionRecord) Continuable() bool {
	return r.Flags&EXCEPTION_NONCONTINUABLE == 0
}
