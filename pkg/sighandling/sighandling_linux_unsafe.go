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

//go:build linux

package sighandling

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// HostSupported reports whether handlers can be installed on this host.
const HostSupported = true

const (
	sigIgn        = 1
	signalSetSize = 8
)

// sigAction mirrors the kernel's rt_sigaction argument. The uintptr
// fields give the layout the right word size on both 32- and 64-bit
// kernels.
type sigAction struct {
	handler  uintptr
	flags    uintptr
	restorer uintptr
	mask     uint64
}

// stackT mirrors the kernel's sigaltstack argument.
type stackT struct {
	sp    uintptr
	flags int32
	size  uintptr
}

// installAltStack points fault delivery at stack. Two attempts are made:
// the plain syscall path first, then the raw path, which still works
// when the thread's signal state is too mangled for the runtime-aware
// path to be trusted.
func installAltStack(stack []byte) error {
	ss := stackT{
		sp:   uintptr(unsafe.Pointer(&stack[0])),
		size: uintptr(len(stack)),
	}
	if _, _, errno := unix.Syscall(unix.SYS_SIGALTSTACK, uintptr(unsafe.Pointer(&ss)), 0, 0); errno == 0 {
		return nil
	}
	if _, _, errno := unix.RawSyscall(unix.SYS_SIGALTSTACK, uintptr(unsafe.Pointer(&ss)), 0, 0); errno != 0 {
		return errno
	}
	return nil
}

// ignoreChildren sets SIGCHLD to SIG_IGN, preserving the existing flags.
func ignoreChildren() error {
	var sa sigAction
	if _, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(unix.SIGCHLD), 0, uintptr(unsafe.Pointer(&sa)), signalSetSize, 0, 0); errno != 0 {
		return errno
	}
	sa.handler = sigIgn
	if _, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(unix.SIGCHLD), uintptr(unsafe.Pointer(&sa)), 0, signalSetSize, 0, 0); errno != 0 {
		return errno
	}
	return nil
}

// replaceHandler registers handler for sig with the kernel directly,
// bypassing the runtime's signal handlers. It returns the previously
// installed handler.
func replaceHandler(sig unix.Signal, handler uintptr, flags uint64) (uintptr, error) {
	var sa sigAction
	if _, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), 0, uintptr(unsafe.Pointer(&sa)), signalSetSize, 0, 0); errno != 0 {
		return 0, errno
	}
	previous := sa.handler

	sa.handler = handler
	sa.flags = uintptr(flags)
	sa.mask = 0
	if _, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), uintptr(unsafe.Pointer(&sa)), 0, signalSetSize, 0, 0); errno != 0 {
		return 0, errno
	}
	return previous, nil
}
