// Copyright 2025 The Velox Authors
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

// Package logging builds the slog loggers the platform components take:
// handler selection (json or text), level control, and optional
// size-rotated file output. Components receiving a nil logger fall back
// to a discarding logger of their own, not to the shared [Noop] instance.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// HandlerType selects the log output encoding.
type HandlerType string

const (
	// JSONHandler outputs structured JSON logs.
	JSONHandler HandlerType = "json"
	// TextHandler outputs key=value text logs.
	TextHandler HandlerType = "text"
)

// noopLogger is the shared silent logger.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns the shared no-op logger.
func Noop() *slog.Logger {
	return noopLogger
}

// Rotation configures size-based log file rotation.
type Rotation struct {
	// Path of the log file.
	Path string
	// MaxSizeMB before the file rotates. Default 100.
	MaxSizeMB int
	// MaxBackups to retain. 0 keeps all.
	MaxBackups int
	// MaxAgeDays to retain backups. 0 keeps all.
	MaxAgeDays int
	// Compress rotated files with gzip.
	Compress bool
}

type options struct {
	handler  HandlerType
	level    slog.Level
	output   io.Writer
	rotation *Rotation
	attrs    []slog.Attr
}

// Option configures a logger.
type Option func(*options)

// WithHandler selects the output encoding. Default text.
func WithHandler(h HandlerType) Option {
	return func(o *options) { o.handler = h }
}

// WithLevel sets the minimum level. Default info.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithOutput sets the destination writer. Default stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithRotation writes to a size-rotated file instead of a plain writer.
func WithRotation(r Rotation) Option {
	return func(o *options) { o.rotation = &r }
}

// WithAttrs attaches fixed attributes to every record.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = attrs }
}

// New builds a logger.
func New(opts ...Option) *slog.Logger {
	o := options{handler: TextHandler, level: slog.LevelInfo, output: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	out := o.output
	if o.rotation != nil {
		maxSize := o.rotation.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		out = &lumberjack.Logger{
			Filename:   o.rotation.Path,
			MaxSize:    maxSize,
			MaxBackups: o.rotation.MaxBackups,
			MaxAge:     o.rotation.MaxAgeDays,
			Compress:   o.rotation.Compress,
		}
	}

	hopts := &slog.HandlerOptions{Level: o.level}
	var handler slog.Handler
	if o.handler == JSONHandler {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}
	return slog.New(handler)
}
