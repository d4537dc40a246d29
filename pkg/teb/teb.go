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

// Package teb exposes the slice of the thread environment block consumed
// by fault translation: the per-thread alternate signal stack and the
// reserved segment selectors used to recover thread-local addressing
// after a fault in non-flat code.
//
// Thread management proper is an external collaborator; tests construct
// independent TEB instances.
package teb

// SignalStackSize is the size of the per-thread alternate signal stack.
const SignalStackSize = 16 * 1024

// TEB carries the thread-local state needed on the fault path.
type TEB struct {
	// SignalStack is the memory region for alternate-stack delivery.
	// Empty if the thread has none.
	SignalStack []byte

	// FS is the selector currently loaded for the thread. The normalizer
	// rewrites it before handler logic runs, so that thread-local
	// addressing works even when the fault occurred in 16-bit code.
	FS uint16

	// Win16Selector is the reserved selector addressing this thread's
	// environment block for 16-bit code.
	Win16Selector uint16

	// EmergencySelector is the last-resort selector, used when
	// Win16Selector is itself invalid. Resumption through it is
	// best-effort degraded recovery.
	EmergencySelector uint16
}

// New returns a TEB with an allocated alternate signal stack.
func New() *TEB {
	return &TEB{
		SignalStack: make([]byte, SignalStackSize),
	}
}

// SetFS records the selector the thread should run handler logic under.
func (t *TEB) SetFS(sel uint16) {
	t.FS = sel
}
