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

package sigcontext

import (
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch/fpu"
)

// Synthetic is an in-memory signal context with every field explicit. It
// stands in for kernels with no supported layout, and is the context used
// by tests. Its zero value models a kernel that surfaces neither trap
// code, error code nor fault address.
type Synthetic struct {
	Regs  [NumRegs]uint32
	Segs  [NumSegs]uint16
	Eflag uint32
	Eip   uint32
	Esp   uint32

	// Trap is the trap code; use NewSynthetic for the unknown sentinel.
	Trap int

	// Err is the hardware error code.
	Err uint32

	// CR2 is the faulting address, valid only if HasCR2 is set.
	CR2    uint32
	HasCR2 bool

	// Float is the embedded float save area, if the modelled kernel
	// provides one.
	Float *fpu.State
}

// NewSynthetic returns a Synthetic modelling a kernel that reports no trap
// information at all.
func NewSynthetic() *Synthetic {
	return &Synthetic{Trap: x86.T_UNKNOWN}
}

// General implements Mapper.General.
func (c *Synthetic) General(r Reg) uint32 { return c.Regs[r] }

// SetGeneral implements Mapper.SetGeneral.
func (c *Synthetic) SetGeneral(r Reg, v uint32) { c.Regs[r] = v }

// Segment implements Mapper.Segment.
func (c *Synthetic) Segment(s Seg) uint16 { return c.Segs[s] }

// SetSegment implements Mapper.SetSegment.
func (c *Synthetic) SetSegment(s Seg, v uint16) { c.Segs[s] = v }

// Flags implements Mapper.Flags.
func (c *Synthetic) Flags() uint32 { return c.Eflag }

// SetFlags implements Mapper.SetFlags.
func (c *Synthetic) SetFlags(v uint32) { c.Eflag = v }

// IP implements Mapper.IP.
func (c *Synthetic) IP() uint32 { return c.Eip }

// SetIP implements Mapper.SetIP.
func (c *Synthetic) SetIP(v uint32) { c.Eip = v }

// SP implements Mapper.SP.
func (c *Synthetic) SP() uint32 { return c.Esp }

// SetSP implements Mapper.SetSP.
func (c *Synthetic) SetSP(v uint32) { c.Esp = v }

// TrapNo implements Mapper.TrapNo.
func (c *Synthetic) TrapNo() int { return c.Trap }

// ErrorCode implements Mapper.ErrorCode.
func (c *Synthetic) ErrorCode() uint32 { return c.Err }

// FaultAddr implements Mapper.FaultAddr.
func (c *Synthetic) FaultAddr() (uint32, bool) { return c.CR2, c.HasCR2 }

// FloatState implements Mapper.FloatState.
func (c *Synthetic) FloatState() *fpu.State { return c.Float }
