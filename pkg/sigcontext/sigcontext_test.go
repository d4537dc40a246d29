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
	"testing"

	"sigbridge.dev/sigbridge/pkg/abi/x86"
)

var _ Mapper = (*Synthetic)(nil)

func TestSyntheticDefaults(t *testing.T) {
	c := NewSynthetic()
	if c.TrapNo() != x86.T_UNKNOWN {
		t.Errorf("got trap %d, want the unknown sentinel", c.TrapNo())
	}
	if _, ok := c.FaultAddr(); ok {
		t.Error("got a fault address from a context that surfaces none")
	}
	if c.FloatState() != nil {
		t.Error("got a float area from a context that surfaces none")
	}
}

func TestSyntheticAccessors(t *testing.T) {
	c := NewSynthetic()
	c.SetGeneral(EAX, 0x1234)
	if got := c.General(EAX); got != 0x1234 {
		t.Errorf("got eax %#x, want %#x", got, 0x1234)
	}
	c.SetSegment(CS, 0x23)
	if got := c.Segment(CS); got != 0x23 {
		t.Errorf("got cs %#x, want %#x", got, 0x23)
	}
	c.SetIP(0x401000)
	c.SetSP(0xbffff000)
	c.SetFlags(0x202)
	if c.IP() != 0x401000 || c.SP() != 0xbffff000 || c.Flags() != 0x202 {
		t.Errorf("got ip=%#x sp=%#x flags=%#x after set", c.IP(), c.SP(), c.Flags())
	}
}
