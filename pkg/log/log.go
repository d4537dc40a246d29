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

// Package log provides a minimal leveled logging facility.
//
// Fault handlers run in awkward contexts, so the fast path allocates as
// little as possible and a failing sink drops messages instead of blocking
// or recursing.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Level is the log level.
type Level uint32

const (
	// Warning indicates a problem that the subsystem recovered from, or
	// unexpected host behavior that was classified anyway.
	Warning Level = iota

	// Info is informational.
	Info

	// Debug is for diagnosis only.
	Debug
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("invalid level: %d", l)
	}
}

// Emitter is the final destination for log lines.
type Emitter interface {
	// Emit emits the given log statement. Emit must not fail; emitters
	// swallow or count errors internally.
	Emit(level Level, timestamp time.Time, format string, v ...any)
}

// Writer writes log lines to an io.Writer. If a write fails, subsequent
// messages are dropped and counted until a write succeeds again, at which
// point a summary of the dropped messages is emitted first.
type Writer struct {
	// Next is the write destination.
	Next io.Writer

	// mu protects errors.
	mu sync.Mutex

	// errors counts messages dropped since the last successful write.
	errors int
}

// Write writes the message to the underlying writer.
func (l *Writer) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.errors > 0 {
		// Note that any dropped messages are lost for good; all that is
		// recorded is how many there were.
		msg := fmt.Sprintf("\n*** Dropped %d log messages ***\n", l.errors)
		if _, err := l.Next.Write([]byte(msg)); err != nil {
			l.errors++
			return 0, err
		}
		l.errors = 0
	}

	n, err := l.Next.Write(data)
	if err != nil {
		l.errors++
	}
	return n, err
}

// Emit emits the message via the underlying writer.
func (l *Writer) Emit(level Level, timestamp time.Time, format string, args ...any) {
	fmt.Fprintf(l, format+"\n", args...)
}

// Logger is the log interface consumed by the rest of the module.
type Logger interface {
	// Debugf logs a debug statement.
	Debugf(format string, v ...any)

	// Infof logs an informational statement.
	Infof(format string, v ...any)

	// Warningf logs a warning.
	Warningf(format string, v ...any)

	// IsLogging returns true iff the given level would be logged.
	IsLogging(level Level) bool
}

// BasicLogger is a convenience Logger, pairing a level with an emitter.
type BasicLogger struct {
	Level
	Emitter
}

// Debugf implements Logger.Debugf.
func (l *BasicLogger) Debugf(format string, v ...any) {
	if l.IsLogging(Debug) {
		l.Emit(Debug, time.Now(), format, v...)
	}
}

// Infof implements Logger.Infof.
func (l *BasicLogger) Infof(format string, v ...any) {
	if l.IsLogging(Info) {
		l.Emit(Info, time.Now(), format, v...)
	}
}

// Warningf implements Logger.Warningf.
func (l *BasicLogger) Warningf(format string, v ...any) {
	if l.IsLogging(Warning) {
		l.Emit(Warning, time.Now(), format, v...)
	}
}

// IsLogging implements Logger.IsLogging.
func (l *BasicLogger) IsLogging(level Level) bool {
	return level <= l.Level
}

// logger is the global logger, swapped atomically so that handlers never
// observe a torn update.
var logger atomic.Pointer[BasicLogger]

func init() {
	logger.Store(&BasicLogger{
		Level:   Info,
		Emitter: GoogleEmitter{&Writer{Next: os.Stderr}},
	})
}

// Log returns the global logger.
func Log() *BasicLogger {
	return logger.Load()
}

// SetTarget sets the log target. This is not thread safe with respect to
// messages being concurrently emitted to the previous target.
func SetTarget(target Emitter) {
	old := logger.Load()
	logger.Store(&BasicLogger{Level: old.Level, Emitter: target})
}

// SetLevel sets the log level.
func SetLevel(newLevel Level) {
	old := logger.Load()
	logger.Store(&BasicLogger{Level: newLevel, Emitter: old.Emitter})
}

// throttled drops statements beyond its rate. Fault paths that can fire
// once per trap wrap their logger in one, so unknown hardware behavior
// cannot flood the sink. Level queries pass through unthrottled.
type throttled struct {
	Logger
	lim *rate.Limiter
}

func (t *throttled) Debugf(format string, v ...any) {
	if t.lim.Allow() {
		t.Logger.Debugf(format, v...)
	}
}

func (t *throttled) Infof(format string, v ...any) {
	if t.lim.Allow() {
		t.Logger.Infof(format, v...)
	}
}

func (t *throttled) Warningf(format string, v ...any) {
	if t.lim.Allow() {
		t.Logger.Warningf(format, v...)
	}
}

// RateLimitedLogger caps logger at one statement per every.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &throttled{
		Logger: logger,
		lim:    rate.NewLimiter(rate.Every(every), 1),
	}
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	Log().Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	Log().Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	Log().Warningf(format, v...)
}
