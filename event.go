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

// Event is one log event snapshot handed to a [Layout]. The layout treats it
// as read-only; an Event is transient and not reused across Format calls.
//
// Level and Logger are the two fields every downstream consumer assumes
// present: a zero Level or empty Logger makes Format return an error instead
// of substituting defaults. Message is nullable on purpose; a nil Message
// renders as the literal string "null" so the line shape stays uniform.
type Event struct {
	Level      Level
	Logger     string
	ThreadName string
	Message    *string

	// Err, when non-nil, produces the "throwable" field.
	Err error

	// MDC is the mapped diagnostic context at capture time. Only keys the
	// layout was configured with are rendered, in configured order.
	MDC map[string]string

	// NDC is the nested diagnostic context in push order, oldest first.
	NDC []string

	// Fields carries structured attributes beyond the fixed schema. They are
	// appended after the fixed fields in slice order.
	Fields []Field
}

// Field is a single extra key/value pair on an Event. Values may be any type
// that encodes to JSON.
type Field struct {
	Key   string
	Value any
}

// Msg is a convenience for building the nullable Message field of an Event.
func Msg(s string) *string {
	return &s
}
