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

//go:build !linux

package sighandling

import (
	"errors"

	"golang.org/x/sys/unix"
)

// HostSupported reports whether handlers can be installed on this host.
const HostSupported = false

var errUnsupported = errors.New("sighandling: raw handler installation is not supported on this host")

func installAltStack(stack []byte) error {
	return errUnsupported
}

func ignoreChildren() error {
	return errUnsupported
}

func replaceHandler(sig unix.Signal, handler uintptr, flags uint64) (uintptr, error) {
	return 0, errUnsupported
}
