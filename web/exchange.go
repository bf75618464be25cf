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

package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/veloxhq/velox/stream"
)

// State is the lifecycle position of an exchange.
type State int

const (
	// StateCreated: the exchange exists but the handler has not run.
	StateCreated State = iota
	// StateRunning: the handler is executing or the response is being
	// prepared.
	StateRunning
	// StateDrainingBody: at least one response chunk reached the framer.
	StateDrainingBody
	// StateErrorRecovery: a pre-flush error is being converted into an
	// error response.
	StateErrorRecovery
	// StateComplete: the response was fully written.
	StateComplete
	// StateFailed: the exchange terminated without a complete response.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDrainingBody:
		return "draining_body"
	case StateErrorRecovery:
		return "error_recovery"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handler processes one exchange: it reads the request and fills the
// response. A returned error (or a panic) is recovered into an error
// response while headers are unwritten.
type Handler func(*Exchange) error

// ErrorHandler rebuilds the response of a failed exchange. It runs on a
// fresh response; returning an error falls through to the last-resort
// handler.
type ErrorHandler func(*Exchange, error) error

// Framer writes an exchange's response to the wire in the shape the
// connection's protocol version requires: chunked transfer or direct
// writes on HTTP/1.1, HEADERS and DATA frames on HTTP/2. The engine is
// the only caller and invokes it from the connection's event loop.
type Framer interface {
	// WriteHeaders flushes status and headers. endStream marks a
	// response with no body bytes.
	WriteHeaders(res *Response, endStream bool) error

	// WriteChunk writes one body chunk, taking over the caller's
	// reference.
	WriteChunk(c *stream.Chunk) error

	// Finish ends the body; trailers may be nil.
	Finish(trailers *Headers) error

	// Terminate tears the stream or connection down after an
	// unrecoverable error.
	Terminate(err error)
}

// DefaultErrorHandler renders a web Error as a plain-text response with
// its mapped status and attached headers; unclassified errors map to a
// bare 500.
func DefaultErrorHandler(ex *Exchange, cause error) error {
	res := ex.Response()
	if err := res.SetStatus(StatusOf(cause)); err != nil {
		return err
	}
	var headers map[string]string
	var we *Error
	if errors.As(cause, &we) {
		headers = we.Headers
	}
	for name, value := range headers {
		if err := res.Headers().Set(name, value); err != nil {
			return err
		}
	}
	if err := res.Headers().Set("content-type", "text/plain; charset=utf-8"); err != nil {
		return err
	}
	return res.String(cause.Error())
}

// lastResortHandler emits an empty status-only response. Used when the
// error handler itself fails.
func lastResortHandler(ex *Exchange, cause error) error {
	res := ex.Response()
	res.reset()
	if err := res.SetStatus(StatusOf(cause)); err != nil {
		return err
	}
	return res.Empty()
}

// ExchangeOption configures an exchange.
type ExchangeOption func(*Exchange)

// WithErrorHandler replaces the default error handler.
func WithErrorHandler(h ErrorHandler) ExchangeOption {
	return func(ex *Exchange) { ex.errorHandler = h }
}

// WithLastResort replaces the last-resort handler. Test builds inject
// their own to observe unrecoverable paths.
func WithLastResort(h ErrorHandler) ExchangeOption {
	return func(ex *Exchange) { ex.lastResort = h }
}

// WithLogger sets the exchange logger.
func WithLogger(logger *slog.Logger) ExchangeOption {
	return func(ex *Exchange) { ex.logger = logger }
}

// Exchange pairs one request with one response on a connection's event
// loop and drives the response to the framer through the lifecycle
// Created → Running → DrainingBody → Complete, with pre-flush errors
// detoured through ErrorRecovery.
//
// The exchange owns both request and response; all state mutation
// happens on the loop.
type Exchange struct {
	loop    *stream.Loop
	ctx     context.Context
	req     *Request
	res     *Response
	framer  Framer
	handler Handler

	errorHandler ErrorHandler
	lastResort   ErrorHandler
	logger       *slog.Logger

	state       State
	transferred int64
	recovering  bool
	terminalErr error
	onDone      func(State, error)
}

// NewExchange binds a request to a fresh response on the given loop.
func NewExchange(ctx context.Context, loop *stream.Loop, req *Request, framer Framer, handler Handler, opts ...ExchangeOption) *Exchange {
	ex := &Exchange{
		loop:         loop,
		ctx:          ctx,
		req:          req,
		res:          NewResponse(),
		framer:       framer,
		handler:      handler,
		errorHandler: DefaultErrorHandler,
		lastResort:   lastResortHandler,
		state:        StateCreated,
	}
	for _, opt := range opts {
		opt(ex)
	}
	if ex.logger == nil {
		ex.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return ex
}

// Context returns the application context the exchange is bound to.
func (ex *Exchange) Context() context.Context { return ex.ctx }

// Request returns the exchange request.
func (ex *Exchange) Request() *Request { return ex.req }

// Response returns the exchange response.
func (ex *Exchange) Response() *Response { return ex.res }

// State returns the current lifecycle state.
func (ex *Exchange) State() State { return ex.state }

// Transferred returns the body bytes handed to the framer so far.
func (ex *Exchange) Transferred() int64 { return ex.transferred }

// Err returns the terminal error of a failed exchange.
func (ex *Exchange) Err() error { return ex.terminalErr }

// OnDone registers a completion callback, invoked on the loop with the
// terminal state.
func (ex *Exchange) OnDone(fn func(State, error)) {
	ex.onDone = fn
}

// ExecuteInEventLoop runs the task on the exchange's event loop. Handlers
// producing data from other goroutines use it to re-enter the loop.
func (ex *Exchange) ExecuteInEventLoop(task func()) {
	ex.loop.Execute(task)
}

// Start runs the handler on the event loop and begins draining the
// response body. A synchronous handler error or panic is recovered into
// an error exchange with a fresh response.
func (ex *Exchange) Start() {
	ex.loop.Execute(ex.start)
}

func (ex *Exchange) start() {
	if ex.state != StateCreated {
		return
	}
	ex.state = StateRunning
	if err := ex.invokeHandler(); err != nil {
		ex.recover(err)
		return
	}
	ex.sendResponse()
}

func (ex *Exchange) invokeHandler() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return ex.handler(ex)
}

// sendResponse drains the selected body variant to the framer.
func (ex *Exchange) sendResponse() {
	res := ex.res
	if err := materializeCookies(res.headers, res.cookies); err != nil {
		ex.fail(err)
		return
	}
	switch res.kind {
	case bodyEmpty:
		if res.headers.ContentLength() < 0 {
			_ = res.headers.SetContentLength(0)
		}
		if err := ex.framer.WriteHeaders(res, !res.HasTrailers()); err != nil {
			ex.fail(err)
			return
		}
		res.headers.MarkWritten()
		ex.finish()

	case bodyValue:
		// A single response: the length is known before the first write.
		if res.headers.ContentLength() < 0 {
			_ = res.headers.SetContentLength(int64(len(res.value)))
		}
		if err := ex.framer.WriteHeaders(res, false); err != nil {
			ex.fail(err)
			return
		}
		res.headers.MarkWritten()
		ex.state = StateDrainingBody
		ex.transferred = int64(len(res.value))
		if err := ex.framer.WriteChunk(stream.NewChunk(res.value)); err != nil {
			ex.fail(err)
			return
		}
		ex.finish()

	case bodyPublisher:
		// Streaming: headers flush on the first chunk, chunked transfer
		// or DATA framing carries the rest.
		err := res.publisher.Subscribe(&bodySubscriber{ex: ex}, stream.Unbounded)
		if err != nil {
			ex.recover(err)
		}
	}
}

// bodySubscriber forwards publisher chunks to the framer on the event
// loop.
type bodySubscriber struct {
	ex *Exchange
}

func (s *bodySubscriber) OnChunk(c *stream.Chunk) {
	s.ex.loop.Execute(func() { s.ex.onBodyChunk(c) })
}

func (s *bodySubscriber) OnComplete() {
	s.ex.loop.Execute(s.ex.onBodyComplete)
}

func (s *bodySubscriber) OnError(err error) {
	s.ex.loop.Execute(func() { s.ex.onBodyError(err) })
}

func (ex *Exchange) onBodyChunk(c *stream.Chunk) {
	if ex.state == StateFailed || ex.state == StateComplete {
		c.Release()
		return
	}
	res := ex.res
	if !res.headers.Written() {
		if err := ex.framer.WriteHeaders(res, false); err != nil {
			c.Release()
			ex.fail(err)
			return
		}
		res.headers.MarkWritten()
		ex.state = StateDrainingBody
	}
	ex.transferred += int64(c.ReadableBytes())
	if err := ex.framer.WriteChunk(c); err != nil {
		ex.fail(err)
	}
}

func (ex *Exchange) onBodyComplete() {
	if ex.state == StateFailed || ex.state == StateComplete {
		return
	}
	res := ex.res
	if !res.headers.Written() {
		// The publisher completed without a byte: the response is fixed
		// at length zero.
		if res.headers.ContentLength() < 0 {
			_ = res.headers.SetContentLength(0)
		}
		if err := ex.framer.WriteHeaders(res, !res.HasTrailers()); err != nil {
			ex.fail(err)
			return
		}
		res.headers.MarkWritten()
	}
	ex.finish()
}

func (ex *Exchange) onBodyError(err error) {
	if ex.state == StateFailed || ex.state == StateComplete {
		return
	}
	if ex.res.headers.Written() {
		// Nothing to recover: part of the response is on the wire.
		ex.fail(err)
		return
	}
	ex.recover(err)
}

// recover converts a pre-flush error into an error response. If the
// error handler fails too, the last-resort handler emits a status-only
// response.
func (ex *Exchange) recover(cause error) {
	if ex.recovering {
		// The recovery response itself failed before flushing; fall
		// straight to the last resort.
		ex.lastResortResponse(cause)
		return
	}
	ex.recovering = true
	ex.state = StateErrorRecovery
	ex.transferred = 0
	ex.res.reset()

	ex.logger.Debug("recovering exchange error",
		"error", cause, "target", ex.req.Target())

	if err := ex.invokeErrorHandler(cause); err != nil {
		ex.lastResortResponse(cause)
		return
	}
	ex.sendResponse()
}

func (ex *Exchange) invokeErrorHandler(cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error handler panic: %v", r)
		}
	}()
	return ex.errorHandler(ex, cause)
}

func (ex *Exchange) lastResortResponse(cause error) {
	if err := ex.lastResort(ex, cause); err != nil {
		ex.fail(err)
		return
	}
	ex.sendResponse()
}

// finish writes trailers when present and completes the exchange.
func (ex *Exchange) finish() {
	var trailers *Headers
	if ex.res.HasTrailers() {
		trailers = ex.res.trailers
		trailers.MarkWritten()
	}
	if err := ex.framer.Finish(trailers); err != nil {
		ex.fail(err)
		return
	}
	ex.state = StateComplete
	ex.done(nil)
}

// fail records a terminal error and tears down the transport.
func (ex *Exchange) fail(err error) {
	if ex.state == StateFailed {
		return
	}
	ex.state = StateFailed
	ex.terminalErr = err
	ex.logger.Error("exchange failed",
		"error", err, "target", ex.req.Target(), "transferred", ex.transferred)
	ex.framer.Terminate(err)
	ex.done(err)
}

func (ex *Exchange) done(err error) {
	if ex.onDone != nil {
		ex.onDone(ex.state, err)
	}
}
