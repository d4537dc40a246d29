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

//go:build !(linux && 386)

package vm86

import "errors"

// HostSupported reports whether this host has a legacy-mode entry
// primitive.
const HostSupported = false

func hostEntry(cb *ControlBlock) (int, error) {
	return 0, errors.New("vm86: legacy-mode execution is not supported on this host")
}
