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

package sigcontext

import (
	"unsafe"

	"sigbridge.dev/sigbridge/pkg/arch/fpu"
)

// HostSupported indicates that this build has a native raw-context layout.
const HostSupported = true

// LinuxContext is the Linux i386 struct sigcontext, as passed on the stack
// to an sa_handler-style signal handler. The layout is fixed by the kernel
// ABI (arch/x86/include/uapi/asm/sigcontext.h, 32-bit variant).
type LinuxContext struct {
	GSel      uint16
	gsh       uint16
	FSel      uint16
	fsh       uint16
	ESel      uint16
	esh       uint16
	DSel      uint16
	dsh       uint16
	EDI       uint32
	ESI       uint32
	EBP       uint32
	ESP       uint32
	EBX       uint32
	EDX       uint32
	ECX       uint32
	EAX       uint32
	Trapno    uint32
	Err       uint32
	EIP       uint32
	CSel      uint16
	csh       uint16
	EFlags    uint32
	ESPSignal uint32
	SSel      uint16
	ssh       uint16
	FPState   uint32 // pointer to struct _fpstate, 0 if none
	Oldmask   uint32
	CR2       uint32
}

// General implements Mapper.General.
func (c *LinuxContext) General(r Reg) uint32 {
	switch r {
	case EAX:
		return c.EAX
	case EBX:
		return c.EBX
	case ECX:
		return c.ECX
	case EDX:
		return c.EDX
	case ESI:
		return c.ESI
	case EDI:
		return c.EDI
	default:
		return c.EBP
	}
}

// SetGeneral implements Mapper.SetGeneral.
func (c *LinuxContext) SetGeneral(r Reg, v uint32) {
	switch r {
	case EAX:
		c.EAX = v
	case EBX:
		c.EBX = v
	case ECX:
		c.ECX = v
	case EDX:
		c.EDX = v
	case ESI:
		c.ESI = v
	case EDI:
		c.EDI = v
	default:
		c.EBP = v
	}
}

// Segment implements Mapper.Segment.
func (c *LinuxContext) Segment(s Seg) uint16 {
	switch s {
	case CS:
		return c.CSel
	case DS:
		return c.DSel
	case ES:
		return c.ESel
	case FS:
		return c.FSel
	case GS:
		return c.GSel
	default:
		return c.SSel
	}
}

// SetSegment implements Mapper.SetSegment.
func (c *LinuxContext) SetSegment(s Seg, v uint16) {
	switch s {
	case CS:
		c.CSel = v
	case DS:
		c.DSel = v
	case ES:
		c.ESel = v
	case FS:
		c.FSel = v
	case GS:
		c.GSel = v
	default:
		c.SSel = v
	}
}

// Flags implements Mapper.Flags.
func (c *LinuxContext) Flags() uint32 { return c.EFlags }

// SetFlags implements Mapper.SetFlags.
func (c *LinuxContext) SetFlags(v uint32) { c.EFlags = v }

// IP implements Mapper.IP.
func (c *LinuxContext) IP() uint32 { return c.EIP }

// SetIP implements Mapper.SetIP.
func (c *LinuxContext) SetIP(v uint32) { c.EIP = v }

// SP implements Mapper.SP.
func (c *LinuxContext) SP() uint32 { return c.ESP }

// SetSP implements Mapper.SetSP.
func (c *LinuxContext) SetSP(v uint32) { c.ESP = v }

// TrapNo implements Mapper.TrapNo.
func (c *LinuxContext) TrapNo() int { return int(c.Trapno) }

// ErrorCode implements Mapper.ErrorCode.
func (c *LinuxContext) ErrorCode() uint32 { return c.Err }

// FaultAddr implements Mapper.FaultAddr.
func (c *LinuxContext) FaultAddr() (uint32, bool) { return c.CR2, true }

// FloatState implements Mapper.FloatState. The kernel's struct _fpstate
// begins with the FNSAVE environment, so the prefix aliases fpu.State.
func (c *LinuxContext) FloatState() *fpu.State {
	if c.FPState == 0 {
		return nil
	}
	return (*fpu.State)(unsafe.Pointer(uintptr(c.FPState)))
}
