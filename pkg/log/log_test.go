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
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	if len(tw.lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(tw.lines), tw.lines)
	}
	if !strings.Contains(tw.lines[1], "Dropped") {
		t.Errorf("expected drop summary, got: %q", tw.lines[1])
	}
	if tw.lines[2] != "line 2\n" {
		t.Errorf("got %q, want %q", tw.lines[2], "line 2\n")
	}
}

func TestLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)

	if len(tw.lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(tw.lines), tw.lines)
	}
	if l.IsLogging(Debug) {
		t.Errorf("Debug should not be logging at Info level")
	}
}

func TestGoogleFormat(t *testing.T) {
	tw := &testWriter{}
	g := GoogleEmitter{&Writer{Next: tw}}
	g.Emit(Warning, time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC), "fault %d", 42)

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(tw.lines))
	}
	if !strings.HasPrefix(tw.lines[0], "W0506 07:08:09.123456") {
		t.Errorf("unexpected header: %q", tw.lines[0])
	}
	if !strings.Contains(tw.lines[0], "fault 42") {
		t.Errorf("message missing: %q", tw.lines[0])
	}
}

func TestRateLimit(t *testing.T) {
	tw := &testWriter{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}, time.Hour)

	l.Warningf("first")
	l.Warningf("suppressed")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
	}

	// Level queries are never throttled.
	if !l.IsLogging(Info) || l.IsLogging(Debug) {
		t.Error("rate limiting changed the reported level")
	}
}
