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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Environment variables consulted by NewHandler before options are applied.
const (
	envLogLevel     = "JSONLAYOUT_LEVEL"
	envLoggerName   = "JSONLAYOUT_LOGGER"
	envMDCKeys      = "JSONLAYOUT_MDC_KEYS"
	envTarget       = "JSONLAYOUT_TARGET"
	envStackEnabled = "JSONLAYOUT_STACK_TRACE_ENABLED"
	envStackLevel   = "JSONLAYOUT_STACK_TRACE_LEVEL"
)

// ErrInvalidRedirectTarget indicates an unsupported value for
// JSONLAYOUT_TARGET or a redirect option.
var ErrInvalidRedirectTarget = errors.New("jsonlayout: invalid redirect target")

// defaultLoggerName is used when neither options nor environment supply a
// logger name, mirroring log4j's root logger.
const defaultLoggerName = "root"

// discardHandler behaves like slog.DiscardHandler, which requires Go 1.24:
// it is never enabled and discards every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Option mutates Handler construction behaviour when supplied to
// [NewHandler]. Options follow the functional options pattern and are
// applied in the order they are provided, after environment overrides.
type Option func(*options)

type options struct {
	level                 *slog.Level
	levelVar              *slog.LevelVar
	loggerName            *string
	mdcKeys               []string
	mdcKeysSet            bool
	stackTraceEnabled     *bool
	stackTraceLevel       *slog.Level
	writer                io.Writer
	writerFilePath        *string
	writerExternallyOwned bool
	frameExtractor        FrameExtractor
	internalLogger        *slog.Logger
}

type handlerConfig struct {
	Level                 slog.Level
	LoggerName            string
	MDCKeys               []string
	StackTraceEnabled     bool
	StackTraceLevel       slog.Level
	Writer                io.Writer
	FilePath              string
	FrameExtractor        FrameExtractor
	writerExternallyOwned bool
}

// handlerOutput is the write-side state shared between a handler and every
// clone produced by WithAttrs or WithGroup.
type handlerOutput struct {
	mu               sync.Mutex
	writer           io.Writer
	switchableWriter *SwitchableWriter
	ownedFile        *os.File
	filePath         string
	closeOnce        sync.Once
}

// Handler implements [slog.Handler] on top of a [Layout]. Each record is
// assembled into an [Event] from the record itself, the calling goroutine,
// and the diagnostic context carried by ctx, then written as one line.
type Handler struct {
	layout         *Layout
	cfg            *handlerConfig
	out            *handlerOutput
	levelVar       *slog.LevelVar
	internalLogger *slog.Logger

	loggerName  string
	attrs       []slog.Attr
	groupPrefix string
}

// NewHandler builds a jsonlayout-backed slog handler. It inspects the
// environment for configuration overrides and then applies any provided
// [Option] values. The handler writes to defaultWriter unless a redirect
// option or environment override is provided.
//
// Example:
//
//	h, err := jsonlayout.NewHandler(os.Stdout,
//		jsonlayout.WithLoggerName("org.elasticsearch"),
//		jsonlayout.WithMDCKeyString("UserID,RequestID"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := slog.New(h)
//	logger.Info("ready")
func NewHandler(defaultWriter io.Writer, opts ...Option) (*Handler, error) {
	builder := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	internalLogger := builder.internalLogger
	if internalLogger == nil {
		internalLogger = slog.New(discardHandler{})
	}

	cfg, err := loadConfigFromEnv(internalLogger)
	if err != nil {
		return nil, err
	}
	applyOptions(&cfg, builder)

	if cfg.Writer == nil && cfg.FilePath == "" {
		if defaultWriter != nil {
			cfg.Writer = defaultWriter
		} else {
			cfg.Writer = os.Stdout
		}
		cfg.writerExternallyOwned = true
	}

	out := &handlerOutput{filePath: cfg.FilePath}
	if cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("jsonlayout: open log file %q: %w", cfg.FilePath, err)
		}
		out.ownedFile = file
		out.switchableWriter = NewSwitchableWriter(file)
		out.writer = out.switchableWriter
	} else {
		out.writer = cfg.Writer
	}

	levelVar := builder.levelVar
	if levelVar == nil {
		levelVar = new(slog.LevelVar)
	}
	levelVar.Set(cfg.Level)

	cfgPtr := &cfg
	return &Handler{
		layout: NewLayout(LayoutConfig{
			MDCKeys:        cfg.MDCKeys,
			FrameExtractor: cfg.FrameExtractor,
		}),
		cfg:            cfgPtr,
		out:            out,
		levelVar:       levelVar,
		internalLogger: internalLogger,
		loggerName:     cfg.LoggerName,
	}, nil
}

// Enabled reports whether level is enabled for emission.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.levelVar != nil {
		min = h.levelVar.Level()
	}
	return level >= min
}

// Handle assembles an Event for r and writes the formatted line to the
// configured writer. The first error-valued attribute becomes the event's
// throwable; a string attribute named "logger" overrides the logger name
// for this record only.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	e := Event{
		Level:      FromSlogLevel(r.Level),
		Logger:     h.loggerName,
		ThreadName: goroutineName(),
		Message:    &r.Message,
		MDC:        mdcFromContext(ctx),
		NDC:        ndcFromContext(ctx),
	}

	// Attrs stored by WithAttrs were prefixed at clone time; only record
	// attrs take the current group prefix here.
	collect := func(attr slog.Attr, prefix string) {
		attr.Value = attr.Value.Resolve()
		if attr.Key == "" {
			return
		}
		if e.Err == nil {
			if errVal := extractErrorFromValue(attr.Value); errVal != nil {
				e.Err = errVal
				return
			}
		}
		if prefix == "" && attr.Key == "logger" && attr.Value.Kind() == slog.KindString {
			e.Logger = attr.Value.String()
			return
		}
		e.Fields = append(e.Fields, Field{
			Key:   prefix + attr.Key,
			Value: attrValue(attr.Value),
		})
	}

	for _, attr := range h.attrs {
		collect(attr, "")
	}
	r.Attrs(func(attr slog.Attr) bool {
		collect(attr, h.groupPrefix)
		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e.Fields = append(e.Fields,
			Field{Key: "trace_id", Value: sc.TraceID().String()},
			Field{Key: "span_id", Value: sc.SpanID().String()},
			Field{Key: "trace_sampled", Value: sc.IsSampled()},
		)
	}

	if e.Err == nil && h.cfg.StackTraceEnabled && r.Level >= h.cfg.StackTraceLevel {
		if frames := captureFrames(skipInternalStackFrame); len(frames) > 0 {
			e.Fields = append(e.Fields, Field{Key: "stackTrace", Value: strings.Join(frames, "\n")})
		}
	}

	line, err := h.layout.Format(&e)
	if err != nil {
		h.internalLogger.Error("failed to render log line", slog.Any("error", err))
		return err
	}

	h.out.mu.Lock()
	_, err = h.out.writer.Write(line)
	h.out.mu.Unlock()
	if err != nil {
		h.internalLogger.Error("failed to write log line", slog.Any("error", err))
		return err
	}
	return nil
}

// WithAttrs returns a handler that includes attrs on every emitted record.
// The write side is shared with the parent so lines never interleave.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		if attr.Key == "" && attr.Value.Any() == nil {
			continue
		}
		if h.groupPrefix != "" {
			attr.Key = h.groupPrefix + attr.Key
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup nests subsequent attribute keys under name using dotted
// prefixes, which keeps the line a single flat object as the layout
// requires.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groupPrefix = h.groupPrefix + name + "."
	return &clone
}

// SetLevel updates the minimum level accepted by the handler at runtime.
// Safe for concurrent use.
func (h *Handler) SetLevel(level slog.Level) {
	if h == nil || h.levelVar == nil {
		return
	}
	h.levelVar.Set(level)
}

// Level reports the handler's current minimum level.
func (h *Handler) Level() slog.Level {
	if h == nil || h.levelVar == nil {
		return slog.LevelInfo
	}
	return h.levelVar.Level()
}

// LevelVar returns the underlying slog.LevelVar used to gate records, for
// integration with external configuration systems.
func (h *Handler) LevelVar() *slog.LevelVar {
	if h == nil {
		return nil
	}
	return h.levelVar
}

// MDCKeys returns the MDC key list the handler's layout renders, in order.
func (h *Handler) MDCKeys() []string {
	return h.layout.MDCKeys()
}

// Close releases resources owned by the handler, such as log files opened
// from a file target. Safe to call multiple times; only the first
// invocation performs work.
func (h *Handler) Close() error {
	var firstErr error
	h.out.closeOnce.Do(func() {
		h.out.mu.Lock()
		closeOwnedFile := h.out.ownedFile != nil
		if h.out.switchableWriter != nil {
			if err := h.out.switchableWriter.Close(); err != nil {
				firstErr = err
				h.internalLogger.Error("failed to close switchable writer", slog.Any("error", err))
			} else {
				closeOwnedFile = false
			}
			h.out.switchableWriter = nil
		}
		if closeOwnedFile {
			if err := h.out.ownedFile.Close(); err != nil && firstErr == nil {
				firstErr = err
				h.internalLogger.Error("failed to close log file", slog.Any("error", err))
			}
		}
		h.out.ownedFile = nil
		h.out.mu.Unlock()

		if h.cfg != nil && !h.cfg.writerExternallyOwned && h.cfg.FilePath == "" {
			if c, ok := h.cfg.Writer.(io.Closer); ok {
				if err := c.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	return firstErr
}

// ReopenLogFile rotates the handler's file writer when logging to a file,
// cooperating with external rotation tools. A no-op for other targets.
func (h *Handler) ReopenLogFile() error {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()

	if h.out.filePath == "" || h.out.switchableWriter == nil {
		return nil
	}

	if h.out.ownedFile != nil {
		if err := h.out.ownedFile.Close(); err != nil {
			h.internalLogger.Warn("error closing log file before reopen", slog.Any("error", err))
		}
	}

	file, err := os.OpenFile(h.out.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("jsonlayout: reopen log file %q: %w", h.out.filePath, err)
	}

	h.out.ownedFile = file
	h.out.switchableWriter.SetWriter(file)
	return nil
}

// WithLevel sets the minimum slog level accepted by the handler.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithLevelVar shares the provided slog.LevelVar with the handler so
// external code can adjust the level at runtime.
func WithLevelVar(levelVar *slog.LevelVar) Option {
	return func(o *options) {
		if levelVar != nil {
			o.levelVar = levelVar
		}
	}
}

// WithLoggerName sets the logger name emitted in every line. Defaults to
// "root" when neither this option nor JSONLAYOUT_LOGGER is set.
func WithLoggerName(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(o *options) {
		o.loggerName = &trimmed
	}
}

// WithMDCKeys selects which MDC keys the handler's layout renders.
func WithMDCKeys(keys ...string) Option {
	return func(o *options) {
		o.mdcKeys = append([]string(nil), keys...)
		o.mdcKeysSet = true
	}
}

// WithMDCKeyString selects MDC keys from a comma-separated list.
func WithMDCKeyString(s string) Option {
	return func(o *options) {
		o.mdcKeys = ParseMDCKeys(s)
		o.mdcKeysSet = true
	}
}

// WithStackTraceEnabled toggles capture of a fallback stack trace on
// records at or above the stack trace level that carry no error.
func WithStackTraceEnabled(enabled bool) Option {
	return func(o *options) {
		o.stackTraceEnabled = &enabled
	}
}

// WithStackTraceLevel captures fallback stack traces for records at or
// above level. Defaults to [slog.LevelError].
func WithStackTraceLevel(level slog.Level) Option {
	return func(o *options) {
		o.stackTraceLevel = &level
	}
}

// WithHandlerFrameExtractor overrides the frame extractor used by the
// handler's layout for throwable rendering.
func WithHandlerFrameExtractor(fx FrameExtractor) Option {
	return func(o *options) {
		o.frameExtractor = fx
	}
}

// WithInternalLogger injects a logger used for the handler's own
// diagnostics. Discarded by default.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.internalLogger = logger
	}
}

// WithRedirectToStdout forces the handler to emit lines to stdout.
func WithRedirectToStdout() Option {
	return func(o *options) {
		o.writer = os.Stdout
		o.writerFilePath = nil
		o.writerExternallyOwned = true
	}
}

// WithRedirectToStderr forces the handler to emit lines to stderr.
func WithRedirectToStderr() Option {
	return func(o *options) {
		o.writer = os.Stderr
		o.writerFilePath = nil
		o.writerExternallyOwned = true
	}
}

// WithRedirectToFile directs handler output to the file at path, creating
// it if necessary. The equivalent environment form is
// JSONLAYOUT_TARGET=file:<path>.
func WithRedirectToFile(path string) Option {
	trimmed := strings.TrimSpace(path)
	return func(o *options) {
		o.writer = nil
		o.writerFilePath = &trimmed
		o.writerExternallyOwned = false
	}
}

// WithRedirectWriter uses writer for output without taking ownership of its
// lifecycle.
func WithRedirectWriter(writer io.Writer) Option {
	return func(o *options) {
		o.writer = writer
		o.writerFilePath = nil
		o.writerExternallyOwned = true
	}
}

// loadConfigFromEnv reads handler configuration overrides from environment
// variables, logging validation issues to logger.
func loadConfigFromEnv(logger *slog.Logger) (handlerConfig, error) {
	cfg := handlerConfig{
		Level:           slog.LevelInfo,
		LoggerName:      defaultLoggerName,
		MDCKeys:         []string{},
		StackTraceLevel: slog.LevelError,
	}

	cfg.Level = parseLevelEnv(os.Getenv(envLogLevel), cfg.Level, logger)
	cfg.StackTraceEnabled = parseBoolEnv(os.Getenv(envStackEnabled), cfg.StackTraceEnabled, logger)
	cfg.StackTraceLevel = parseLevelEnv(os.Getenv(envStackLevel), cfg.StackTraceLevel, logger)

	if name := strings.TrimSpace(os.Getenv(envLoggerName)); name != "" {
		cfg.LoggerName = name
	}
	if keys := os.Getenv(envMDCKeys); keys != "" {
		cfg.MDCKeys = ParseMDCKeys(keys)
	}

	if err := applyTargetFromEnv(&cfg, logger); err != nil {
		return handlerConfig{}, err
	}
	return cfg, nil
}

// applyOptions merges user-supplied options into the derived handler
// configuration.
func applyOptions(cfg *handlerConfig, o *options) {
	if o.level != nil {
		cfg.Level = *o.level
	}
	if o.levelVar != nil {
		cfg.Level = o.levelVar.Level()
	}
	if o.loggerName != nil && *o.loggerName != "" {
		cfg.LoggerName = *o.loggerName
	}
	if o.mdcKeysSet {
		cfg.MDCKeys = o.mdcKeys
	}
	if o.stackTraceEnabled != nil {
		cfg.StackTraceEnabled = *o.stackTraceEnabled
	}
	if o.stackTraceLevel != nil {
		cfg.StackTraceLevel = *o.stackTraceLevel
	}
	if o.frameExtractor != nil {
		cfg.FrameExtractor = o.frameExtractor
	}
	if o.writerFilePath != nil {
		cfg.FilePath = strings.TrimSpace(*o.writerFilePath)
		cfg.Writer = nil
		cfg.writerExternallyOwned = false
	}
	if o.writer != nil {
		cfg.Writer = o.writer
		cfg.FilePath = ""
		cfg.writerExternallyOwned = o.writerExternallyOwned
	}
}

// applyTargetFromEnv adjusts the output destination based on
// JSONLAYOUT_TARGET.
func applyTargetFromEnv(cfg *handlerConfig, logger *slog.Logger) error {
	target := strings.TrimSpace(os.Getenv(envTarget))
	if target == "" {
		return nil
	}

	lower := strings.ToLower(target)
	switch {
	case lower == "stdout":
		cfg.Writer = os.Stdout
		cfg.FilePath = ""
		cfg.writerExternallyOwned = true
	case lower == "stderr":
		cfg.Writer = os.Stderr
		cfg.FilePath = ""
		cfg.writerExternallyOwned = true
	case strings.HasPrefix(lower, "file:"):
		path := strings.TrimSpace(target[len("file:"):])
		if path == "" {
			logDiagnostic(logger, slog.LevelWarn, "empty file target", slog.String("variable", envTarget))
			return ErrInvalidRedirectTarget
		}
		cfg.FilePath = path
		cfg.Writer = nil
		cfg.writerExternallyOwned = false
	default:
		logDiagnostic(logger, slog.LevelWarn, "unknown JSONLAYOUT_TARGET", slog.String("value", target))
		return ErrInvalidRedirectTarget
	}
	return nil
}

// parseBoolEnv interprets truthy environment variable values with
// validation diagnostics.
func parseBoolEnv(value string, current bool, logger *slog.Logger) bool {
	if strings.TrimSpace(value) == "" {
		return current
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid boolean environment variable", slog.String("value", value), slog.Any("error", err))
		return current
	}
	return b
}

// parseLevelEnv parses levels from environment variables, retaining the
// current level on failure. Both slog names and log4j names are accepted.
func parseLevelEnv(value string, current slog.Level, logger *slog.Logger) slog.Level {
	if strings.TrimSpace(value) == "" {
		return current
	}
	lvl, err := ParseLevel(value)
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid log level environment variable", slog.String("value", value))
		return current
	}
	return lvl.SlogLevel()
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers in tests.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// extractErrorFromValue unwraps an error from a slog.Value when possible.
func extractErrorFromValue(v slog.Value) error {
	if v.Kind() != slog.KindAny {
		return nil
	}
	if anyVal := v.Any(); anyVal != nil {
		if err, ok := anyVal.(error); ok {
			return err
		}
	}
	return nil
}

// attrValue converts a resolved slog.Value into a JSON-encodable Go value.
func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := v.Group()
		m := make(map[string]any, len(group))
		for _, attr := range group {
			if attr.Key == "" {
				continue
			}
			m[attr.Key] = attrValue(attr.Value.Resolve())
		}
		return m
	default:
		return v.Any()
	}
}
