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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Level represents the severity of a log event using the classic log4j
// severity ladder. The integer values mirror log4j's spacing so that custom
// in-between severities remain ordered, and the zero value deliberately
// represents "no level": an [Event] whose Level is the zero value fails
// [Layout.Format] rather than silently defaulting.
type Level int

// Severity constants, spaced like log4j's Priority values.
const (
	// LevelTrace is the finest-grained severity.
	LevelTrace Level = 5000

	// LevelDebug designates fine-grained diagnostic events.
	LevelDebug Level = 10000

	// LevelInfo designates coarse-grained progress events.
	LevelInfo Level = 20000

	// LevelWarn designates potentially harmful situations.
	LevelWarn Level = 30000

	// LevelError designates errors that still allow the application to run.
	LevelError Level = 40000

	// LevelFatal designates severe errors that presumably abort the
	// application.
	LevelFatal Level = 50000
)

// String returns the canonical name of the level ("TRACE" through "FATAL").
// Intermediate values render as the nearest lower defined level plus the
// offset (for example "INFO+500"); values below TRACE render as their raw
// integer so nothing is ever unprintable.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	}

	var base Level
	var name string
	switch {
	case l < LevelTrace:
		return strconv.Itoa(int(l))
	case l < LevelDebug:
		base, name = LevelTrace, "TRACE"
	case l < LevelInfo:
		base, name = LevelDebug, "DEBUG"
	case l < LevelWarn:
		base, name = LevelInfo, "INFO"
	case l < LevelError:
		base, name = LevelWarn, "WARN"
	case l < LevelFatal:
		base, name = LevelError, "ERROR"
	default:
		base, name = LevelFatal, "FATAL"
	}
	return fmt.Sprintf("%s+%d", name, int(l-base))
}

// FromSlogLevel maps a slog level onto the log4j severity ladder. Levels
// below slog.LevelDebug map to TRACE and levels above slog.LevelError map to
// FATAL, preserving relative ordering at both extremes.
func FromSlogLevel(l slog.Level) Level {
	switch {
	case l < slog.LevelDebug:
		return LevelTrace
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	case l < slog.LevelError+4:
		return LevelError
	default:
		return LevelFatal
	}
}

// SlogLevel maps the level back onto the closest standard slog level, which
// is what the handler uses for record gating.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= LevelTrace:
		return slog.LevelDebug - 4
	case l <= LevelDebug:
		return slog.LevelDebug
	case l <= LevelInfo:
		return slog.LevelInfo
	case l <= LevelWarn:
		return slog.LevelWarn
	case l <= LevelError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// ParseLevel interprets a severity name ("warn", "FATAL") or a raw integer.
// Matching is case-insensitive and surrounding whitespace is ignored.
func ParseLevel(s string) (Level, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	switch trimmed {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	if v, err := strconv.Atoi(trimmed); err == nil {
		return Level(v), nil
	}
	return 0, fmt.Errorf("jsonlayout: unknown level %q", s)
}
