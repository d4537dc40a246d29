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

//go:build freebsd && 386

package sigcontext

import "sigbridge.dev/sigbridge/pkg/arch/fpu"

// HostSupported indicates that this build has a native raw-context layout.
const HostSupported = true

// BSDContext is the FreeBSD i386 struct sigcontext. Two kernel quirks are
// reflected here: the fault address is delivered through sc_err (see
// i386/i386/trap.c, trap_pfault), so the true error code is unavailable,
// and the flags field is named sc_efl.
type BSDContext struct {
	Onstack uint32
	Mask    uint32
	ESP     uint32
	EBP     uint32
	ISP     uint32
	EIP     uint32
	EFL     uint32
	ESel    uint32
	DSel    uint32
	CSel    uint32
	SSel    uint32
	EDI     uint32
	ESI     uint32
	EBX     uint32
	EDX     uint32
	ECX     uint32
	EAX     uint32
	GSel    uint32
	FSel    uint32
	Trapno  uint32
	Err     uint32
}

// General implements Mapper.General.
func (c *BSDContext) General(r Reg) uint32 {
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
func (c *BSDContext) SetGeneral(r Reg, v uint32) {
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
func (c *BSDContext) Segment(s Seg) uint16 {
	switch s {
	case CS:
		return uint16(c.CSel)
	case DS:
		return uint16(c.DSel)
	case ES:
		return uint16(c.ESel)
	case FS:
		return uint16(c.FSel)
	case GS:
		return uint16(c.GSel)
	default:
		return uint16(c.SSel)
	}
}

// SetSegment implements Mapper.SetSegment.
func (c *BSDContext) SetSegment(s Seg, v uint16) {
	switch s {
	case CS:
		c.CSel = uint32(v)
	case DS:
		c.DSel = uint32(v)
	case ES:
		c.ESel = uint32(v)
	case FS:
		c.FSel = uint32(v)
	case GS:
		c.GSel = uint32(v)
	default:
		c.SSel = uint32(v)
	}
}

// Flags implements Mapper.Flags.
func (c *BSDContext) Flags() uint32 { return c.EFL }

// SetFlags implements Mapper.SetFlags.
func (c *BSDContext) SetFlags(v uint32) { c.EFL = v }

// IP implements Mapper.IP.
func (c *BSDContext) IP() uint32 { return c.EIP }

// SetIP implements Mapper.SetIP.
func (c *BSDContext) SetIP(v uint32) { c.EIP = v }

// SP implements Mapper.SP.
func (c *BSDContext) SP() uint32 { return c.ESP }

// SetSP implements Mapper.SetSP.
func (c *BSDContext) SetSP(v uint32) { c.ESP = v }

// TrapNo implements Mapper.TrapNo.
func (c *BSDContext) TrapNo() int { return int(c.Trapno) }

// ErrorCode implements Mapper.ErrorCode. The kernel overloads sc_err with
// the fault address, so no error code is available.
func (c *BSDContext) ErrorCode() uint32 { return 0 }

// FaultAddr implements Mapper.FaultAddr.
func (c *BSDContext) FaultAddr() (uint32, bool) { return c.Err, true }

// FloatState implements Mapper.FloatState. The context carries no float
// area; the processor still holds the state.
func (c *BSDContext) FloatState() *fpu.State { return nil }
