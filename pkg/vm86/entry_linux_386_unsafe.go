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

//go:build linux && 386

package vm86

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// HostSupported reports whether this host has a legacy-mode entry
// primitive.
const HostSupported = true

const (
	sysVM86   = 166
	vm86Enter = 1
)

// kernelRegs mirrors struct vm86_regs (asm/vm86.h). The __null_*
// segment slots and the high halves of the selector words are kernel
// scratch space and never carry state across an entry.
type kernelRegs struct {
	ebx     uint32
	ecx     uint32
	edx     uint32
	esi     uint32
	edi     uint32
	ebp     uint32
	eax     uint32
	nullDS  uint32
	nullES  uint32
	nullFS  uint32
	nullGS  uint32
	origEax uint32
	eip     uint32
	cs, csh uint16
	eflags  uint32
	esp     uint32
	ss, ssh uint16
	es, esh uint16
	ds, dsh uint16
	fs, fsh uint16
	gs, gsh uint16
}

// kernelVM86 mirrors struct vm86plus_struct.
type kernelVM86 struct {
	regs            kernelRegs
	flags           uint32
	screenBitmap    uint32
	cpuType         uint32
	intRevectored   [32]byte
	int21Revectored [32]byte
	plusFlags       uint32
	vm86Interrupts  [32]byte
}

func (kf *kernelVM86) copyIn(cb *ControlBlock) {
	kf.regs = kernelRegs{
		ebx:    cb.Regs.Ebx,
		ecx:    cb.Regs.Ecx,
		edx:    cb.Regs.Edx,
		esi:    cb.Regs.Esi,
		edi:    cb.Regs.Edi,
		ebp:    cb.Regs.Ebp,
		eax:    cb.Regs.Eax,
		eip:    cb.Regs.Eip,
		cs:     cb.Regs.Cs,
		eflags: cb.Regs.EFlags,
		esp:    cb.Regs.Esp,
		ss:     cb.Regs.Ss,
		es:     cb.Regs.Es,
		ds:     cb.Regs.Ds,
		fs:     cb.Regs.Fs,
		gs:     cb.Regs.Gs,
	}
}

func (kf *kernelVM86) copyOut(cb *ControlBlock) {
	cb.Regs = Regs{
		Eax:    kf.regs.eax,
		Ebx:    kf.regs.ebx,
		Ecx:    kf.regs.ecx,
		Edx:    kf.regs.edx,
		Esi:    kf.regs.esi,
		Edi:    kf.regs.edi,
		Esp:    kf.regs.esp,
		Ebp:    kf.regs.ebp,
		Eip:    kf.regs.eip,
		Cs:     kf.regs.cs,
		Ds:     kf.regs.ds,
		Es:     kf.regs.es,
		Fs:     kf.regs.fs,
		Gs:     kf.regs.gs,
		Ss:     kf.regs.ss,
		EFlags: kf.regs.eflags,
	}
}

// hostEntry enters legacy mode via the vm86plus system call. The raw
// syscall form is required: the kernel returns to the caller only when
// legacy execution bounces, and the runtime must not be allowed to
// interpose.
func hostEntry(cb *ControlBlock) (int, error) {
	var kf kernelVM86
	kf.copyIn(cb)
	ret, _, errno := unix.RawSyscall(sysVM86, vm86Enter, uintptr(unsafe.Pointer(&kf)), 0)
	if errno != 0 {
		return 0, errno
	}
	kf.copyOut(cb)
	return int(ret), nil
}
