// Copyright 2026 The elasticflume Authors
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

package jsonlayout

import (
	"errors"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// maxStackFrames caps the number of frames rendered into a throwable.
const maxStackFrames = 64

var stackPCPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, maxStackFrames)
		return &buf
	},
}

// FrameExtractor produces the ordered, human-readable stack frame strings
// rendered into an event's throwable field. Implementations may use whatever
// capture mechanism the platform provides; the layout only requires that
// each string describe one frame.
type FrameExtractor interface {
	Frames(err error) []string
}

// stackTracer is the interface errors can implement to supply their own
// capture-site program counters. Compatible with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() []uintptr
}

// RuntimeFrames is the default [FrameExtractor]. When the error chain
// carries its own program counters via the stackTracer interface those are
// used; otherwise the current goroutine's stack is captured at format time
// with library-internal and runtime frames trimmed off.
type RuntimeFrames struct{}

// Frames implements FrameExtractor.
func (RuntimeFrames) Frames(err error) []string {
	var st stackTracer
	if errors.As(err, &st) {
		if pcs := st.StackTrace(); len(pcs) > 0 {
			if len(pcs) > maxStackFrames {
				pcs = pcs[:maxStackFrames]
			}
			return frameStrings(pcs)
		}
	}
	return captureFrames(skipInternalStackFrame)
}

// frameStrings resolves program counters into "function (file:line)" frame
// descriptions, skipping runtime exit frames.
func frameStrings(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}

	out := make([]string, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if frame.Function == "" || frame.Function == "runtime.goexit" {
			if !more {
				break
			}
			continue
		}

		var sb strings.Builder
		sb.Grow(len(frame.Function) + len(frame.File) + 16)
		sb.WriteString(frame.Function)
		sb.WriteString(" (")
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteByte(')')
		out = append(out, sb.String())

		if !more || len(out) >= maxStackFrames {
			break
		}
	}
	return out
}

// captureFrames captures the calling goroutine's stack, trimming leading
// frames that match skipFn.
func captureFrames(skipFn func(string) bool) []string {
	bufPtr := stackPCPool.Get().(*[]uintptr)
	pcs := (*bufPtr)[:cap(*bufPtr)]

	n := runtime.Callers(0, pcs)
	if n == 0 {
		stackPCPool.Put(bufPtr)
		return nil
	}
	pcs = pcs[:n]

	trimmed := trimStackPCs(pcs, skipFn)
	if len(trimmed) == 0 {
		trimmed = pcs
	}

	out := frameStrings(trimmed)
	stackPCPool.Put(bufPtr)
	return out
}

// trimStackPCs removes leading frames that match skipFn while preserving the
// remainder.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	if len(pcs) == 0 || skipFn == nil {
		return pcs
	}

	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if !skipFn(frame.Function) {
			break
		}
		skip++
		if !more {
			return nil
		}
	}
	if skip == 0 {
		return pcs
	}
	return pcs[skip:]
}

// skipInternalStackFrame reports whether a frame belongs to jsonlayout,
// log/slog, or runtime internals and should not appear in throwables.
func skipInternalStackFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	if strings.HasPrefix(funcName, "runtime.") {
		return true
	}
	return strings.HasPrefix(funcName, "github.com/elasticflume/jsonlayout/") ||
		strings.HasPrefix(funcName, "github.com/elasticflume/jsonlayout.") ||
		strings.HasPrefix(funcName, "log/slog.")
}

// goroutineName derives a thread-name analog for the calling goroutine from
// the header emitted by runtime.Stack ("goroutine 12 [running]:"). The
// result has the form "goroutine-12".
func goroutineName() string {
	const fallback = "goroutine-0"

	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	if n <= 0 {
		return fallback
	}

	header := string(buf[:n])
	if idx := strings.IndexByte(header, '['); idx > 0 {
		header = header[:idx]
	}
	header = strings.TrimSpace(header)
	id, ok := strings.CutPrefix(header, "goroutine ")
	if !ok || id == "" {
		return fallback
	}
	return "goroutine-" + id
}
