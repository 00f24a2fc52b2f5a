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
	"io"
	"os"
	"sync"
)

// SwitchableWriter is an io.Writer whose underlying writer can be swapped
// atomically. The handler uses one when it owns a log file so that
// [Handler.ReopenLogFile] can point output at a fresh file descriptor
// without rebuilding the handler.
//
// Close attempts to close the current writer when it implements io.Closer
// and then directs further writes to io.Discard.
type SwitchableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSwitchableWriter wraps initial, defaulting to io.Discard when nil.
func NewSwitchableWriter(initial io.Writer) *SwitchableWriter {
	if initial == nil {
		initial = io.Discard
	}
	return &SwitchableWriter{w: initial}
}

// Write forwards p to the current underlying writer. Safe for concurrent
// use. After Close, or if the writer was set to nil, Write reports
// os.ErrClosed.
func (sw *SwitchableWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	current := sw.w
	if current == nil {
		sw.mu.Unlock()
		return 0, os.ErrClosed
	}
	n, err := current.Write(p)
	sw.mu.Unlock()
	if err != nil {
		return n, fmt.Errorf("write via switchable writer: %w", err)
	}
	return n, nil
}

// SetWriter atomically replaces the underlying writer. The previous writer
// is not closed; its lifecycle belongs to the caller. A nil writer directs
// output to io.Discard.
func (sw *SwitchableWriter) SetWriter(w io.Writer) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if w == nil {
		sw.w = io.Discard
		return
	}
	sw.w = w
}

// CurrentWriter returns the writer output is currently directed to. Callers
// should not hold the result across SetWriter calls.
func (sw *SwitchableWriter) CurrentWriter() io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w
}

// Close closes the current writer when closable and redirects further
// writes to io.Discard. Idempotent and safe for concurrent use.
func (sw *SwitchableWriter) Close() error {
	sw.mu.Lock()
	toClose := sw.w
	sw.w = io.Discard
	sw.mu.Unlock()

	if c, ok := toClose.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close current writer: %w", err)
		}
	}
	return nil
}

var _ io.WriteCloser = (*SwitchableWriter)(nil)
