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

// Package x86 contains i386 architectural constants: hardware trap codes,
// EFLAGS bits, FPU status/control bits and segment selector predicates.
package x86

import "fmt"

// Hardware trap codes, as reported by the kernel in the signal context.
// The numbering matches the processor exception vectors.
const (
	T_DIVIDE    = 0  // Division by zero exception
	T_TRCTRAP   = 1  // Single-step exception
	T_NMI       = 2  // NMI interrupt
	T_BPTFLT    = 3  // Breakpoint exception
	T_OFLOW     = 4  // Overflow exception
	T_BOUND     = 5  // Bound range exception
	T_PRIVINFLT = 6  // Invalid opcode exception
	T_DNA       = 7  // Device not available exception
	T_DOUBLEFLT = 8  // Double fault exception
	T_FPOPFLT   = 9  // Coprocessor segment overrun
	T_TSSFLT    = 10 // Invalid TSS exception
	T_SEGNPFLT  = 11 // Segment not present exception
	T_STKFLT    = 12 // Stack fault
	T_PROTFLT   = 13 // General protection fault
	T_PAGEFLT   = 14 // Page fault
	T_RESERVED  = 15 // Unknown exception
	T_ARITHTRAP = 16 // Floating point exception
	T_ALIGNFLT  = 17 // Alignment check exception
	T_MCHK      = 18 // Machine check exception
	T_CACHEFLT  = 19 // Cache flush exception
)

// T_UNKNOWN is the sentinel reported by register mappers whose kernel does
// not surface a trap code.
const T_UNKNOWN = -1

// TrapString returns a readable name for trap.
func TrapString(trap int) string {
	names := [...]string{
		"T_DIVIDE", "T_TRCTRAP", "T_NMI", "T_BPTFLT", "T_OFLOW",
		"T_BOUND", "T_PRIVINFLT", "T_DNA", "T_DOUBLEFLT", "T_FPOPFLT",
		"T_TSSFLT", "T_SEGNPFLT", "T_STKFLT", "T_PROTFLT", "T_PAGEFLT",
		"T_RESERVED", "T_ARITHTRAP", "T_ALIGNFLT", "T_MCHK", "T_CACHEFLT",
	}
	if trap == T_UNKNOWN {
		return "T_UNKNOWN"
	}
	if trap >= 0 && trap < len(names) {
		return names[trap]
	}
	return fmt.Sprintf("trap(%d)", trap)
}

// EFLAGS bits.
const (
	// EFLAGS_TF is the trap flag; set to single-step the next instruction.
	EFLAGS_TF = 0x00000100

	// EFLAGS_AC is the alignment check flag.
	EFLAGS_AC = 0x00040000

	// EFLAGS_VM is the virtual-8086 mode flag.
	EFLAGS_VM = 0x00020000
)

// Page fault error code bits, as pushed by the processor.
const (
	// PFEC_PRESENT is set if the fault was a protection violation rather
	// than a non-present page.
	PFEC_PRESENT = 0x1

	// PFEC_WRITE is set if the faulting access was a write.
	PFEC_WRITE = 0x2

	// PFEC_USER is set if the fault occurred in user mode.
	PFEC_USER = 0x4
)

// x87 FPU status word bits.
const (
	FSW_IE = 0x0001 // invalid operation
	FSW_DE = 0x0002 // denormalized operand
	FSW_ZE = 0x0004 // zero divide
	FSW_OE = 0x0008 // overflow
	FSW_UE = 0x0010 // underflow
	FSW_PE = 0x0020 // precision (inexact result)
	FSW_SF = 0x0040 // stack fault
)

// SELECTOR_TI is the table indicator bit: set for LDT selectors.
const SELECTOR_TI = 0x4

// SelectorIsSystem returns true if sel addresses the GDT. Flat 32-bit code
// runs on GDT selectors; 16-bit code segments live in the per-process LDT.
func SelectorIsSystem(sel uint16) bool {
	return sel&SELECTOR_TI == 0
}
