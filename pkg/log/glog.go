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

package log

import (
	"fmt"
	"os"
	"time"
)

// GoogleEmitter emits logs in a format compatible with package
// github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// pid is used for the threadid component of the header.
var pid = os.Getpid()

// Emit emits the message, glog-style.
func (g GoogleEmitter) Emit(level Level, timestamp time.Time, format string, args ...any) {
	var prefix byte
	switch level {
	case Debug:
		prefix = 'D'
	case Info:
		prefix = 'I'
	case Warning:
		prefix = 'W'
	}

	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	micro := timestamp.Nanosecond() / 1000

	// The caller is not recovered; resolving it costs a runtime.Callers
	// walk on every message, which is unacceptable on the fault path.
	header := fmt.Sprintf("%c%02d%02d %02d:%02d:%02d.%06d % 7d x:0] ",
		prefix, int(month), day, hour, minute, second, micro, pid)

	g.Emitter.Emit(level, timestamp, header+format, args...)
}
