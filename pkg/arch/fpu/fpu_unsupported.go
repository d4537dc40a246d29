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

//go:build !386 && !amd64

package fpu

// Hosts without x87 hardware never deliver float faults whose state is not
// embedded in the signal context, so these are unreachable; the panic is a
// wiring bug, not a runtime condition.

func hostSave(state *State) {
	panic("fpu: no hardware save on this architecture")
}

func hostRestore(state *State) {
	panic("fpu: no hardware restore on this architecture")
}
