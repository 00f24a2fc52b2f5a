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
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

var (
	// ErrMissingLevel reports an Event whose Level is the zero value. Level is
	// one of the two fields every downstream consumer assumes present, so the
	// layout fails the call instead of substituting a default.
	ErrMissingLevel = errors.New("jsonlayout: event has no level")

	// ErrMissingLogger reports an Event with an empty logger name.
	ErrMissingLogger = errors.New("jsonlayout: event has no logger name")
)

// Layout converts one [Event] into a single newline-terminated JSON line.
// The configured MDC key list and frame extractor are immutable after
// construction, so a Layout is safe for concurrent use without locking.
type Layout struct {
	mdcKeys []string
	frames  FrameExtractor
}

// LayoutConfig holds layout configuration. The zero value is valid: no MDC
// keys are rendered and stack frames come from [RuntimeFrames].
type LayoutConfig struct {
	// MDCKeys selects which mapped-diagnostic-context keys the layout
	// renders, in order. Use [ParseMDCKeys] to derive it from the
	// comma-separated configuration form. Empty names are discarded.
	MDCKeys []string

	// FrameExtractor turns an event's error into stack frame strings.
	FrameExtractor FrameExtractor
}

// NewLayout constructs a Layout from cfg. The configuration is copied and
// normalized; the Layout is immutable afterwards.
func NewLayout(cfg LayoutConfig) *Layout {
	keys := make([]string, 0, len(cfg.MDCKeys))
	for _, k := range cfg.MDCKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	frames := cfg.FrameExtractor
	if frames == nil {
		frames = RuntimeFrames{}
	}
	return &Layout{mdcKeys: keys, frames: frames}
}

// ParseMDCKeys splits a comma-separated key list into an ordered slice.
// Entries are trimmed and empty entries dropped. The result is never nil:
// an empty or all-whitespace input yields an empty slice.
func ParseMDCKeys(s string) []string {
	keys := make([]string, 0, strings.Count(s, ",")+1)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

// MDCKeys returns a copy of the configured key list in render order.
func (l *Layout) MDCKeys() []string {
	out := make([]string, len(l.mdcKeys))
	copy(out, l.mdcKeys)
	return out
}

var layoutBufferPool = &sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(256)
		return b
	},
}

func getBuffer() *bytes.Buffer {
	buf := layoutBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	// Don't keep very large buffers.
	if buf.Cap() > 64*1024 {
		return
	}
	layoutBufferPool.Put(buf)
}

// Format renders e as one newline-terminated JSON line. The line contains
// `level`, `logger`, `threadName`, and `message` in that order, then `MDC`,
// `NDC`, and `throwable` when present, then any extra fields. The only
// error conditions are a missing level or logger name.
func (l *Layout) Format(e *Event) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := l.appendEvent(buf, e); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// FormatTo renders e directly to w without an intermediate allocation.
func (l *Layout) FormatTo(e *Event, w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := l.appendEvent(buf, e); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// appendEvent builds the JSON line into buf without reflection on the fixed
// schema. Field order is part of the output contract.
func (l *Layout) appendEvent(buf *bytes.Buffer, e *Event) error {
	if e == nil || e.Level == 0 {
		return ErrMissingLevel
	}
	if e.Logger == "" {
		return ErrMissingLogger
	}

	buf.WriteString(`{"level":"`)
	appendJSONString(buf, e.Level.String())

	buf.WriteString(`","logger":"`)
	appendJSONString(buf, e.Logger)

	buf.WriteString(`","threadName":"`)
	appendJSONString(buf, e.ThreadName)

	// A nil message renders as the string "null", not JSON null, so the
	// field keeps a uniform type for text-search tooling.
	buf.WriteString(`","message":"`)
	if e.Message == nil {
		buf.WriteString("null")
	} else {
		appendJSONString(buf, *e.Message)
	}
	buf.WriteByte('"')

	l.appendMDC(buf, e.MDC)

	if len(e.NDC) > 0 {
		buf.WriteString(`,"NDC":"`)
		for i, scope := range e.NDC {
			if i > 0 {
				buf.WriteByte(' ')
			}
			appendJSONString(buf, scope)
		}
		buf.WriteByte('"')
	}

	if e.Err != nil {
		l.appendThrowable(buf, e.Err)
	}

	for _, f := range e.Fields {
		if f.Key == "" {
			continue
		}
		buf.WriteString(`,"`)
		appendJSONString(buf, f.Key)
		buf.WriteString(`":`)
		appendFieldValue(buf, f.Value)
	}

	buf.WriteString("}\n")
	return nil
}

// appendMDC renders the configured keys that have values, in configured
// order. The field is omitted entirely when no configured key has a value.
func (l *Layout) appendMDC(buf *bytes.Buffer, mdc map[string]string) {
	if len(l.mdcKeys) == 0 || len(mdc) == 0 {
		return
	}

	wrote := false
	for _, key := range l.mdcKeys {
		value, ok := mdc[key]
		if !ok {
			continue
		}
		if !wrote {
			buf.WriteString(`,"MDC":{`)
			wrote = true
		} else {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		appendJSONString(buf, key)
		buf.WriteString(`":"`)
		appendJSONString(buf, value)
		buf.WriteByte('"')
	}
	if wrote {
		buf.WriteByte('}')
	}
}

// appendThrowable renders the error as "<type>: <message>" followed by one
// "at <frame>" line per captured frame. Embedded newlines are escaped by
// appendJSONString, so the throwable never introduces a literal line break.
func (l *Layout) appendThrowable(buf *bytes.Buffer, err error) {
	buf.WriteString(`,"throwable":"`)
	appendJSONString(buf, errorTypeName(err))
	appendJSONString(buf, ": ")
	appendJSONString(buf, err.Error())
	for _, frame := range l.frames.Frames(err) {
		appendJSONString(buf, "\nat ")
		appendJSONString(buf, frame)
	}
	buf.WriteByte('"')
}

// appendFieldValue encodes an extra field value as JSON. Strings take the
// fast path through the layout's own escaper; everything else goes through
// goccy/go-json, falling back to a quoted error description if the value
// does not marshal.
func appendFieldValue(buf *bytes.Buffer, v any) {
	switch tv := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		buf.WriteByte('"')
		appendJSONString(buf, tv)
		buf.WriteByte('"')
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			buf.WriteString(`"!ENCODE: `)
			appendJSONString(buf, err.Error())
			buf.WriteByte('"')
			return
		}
		buf.Write(encoded)
	}
}

// errorTypeName reports the error's full type name with any leading pointer
// marker stripped, the closest Go analog to a fully qualified class name.
func errorTypeName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
