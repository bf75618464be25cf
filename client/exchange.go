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

package client

import (
	"context"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// Request is one outbound request: method, origin-form target, headers
// and an optional body that is either a known-length value or a chunk
// publisher.
type Request struct {
	Method  string
	Target  string
	Headers *web.Headers

	// Body is a known-length payload; BodyPublisher streams. At most one
	// may be set.
	Body          []byte
	BodyPublisher *stream.Channel
}

// NewRequest returns a bodyless request.
func NewRequest(method, target string) *Request {
	return &Request{Method: method, Target: target, Headers: web.NewHeaders()}
}

// Response is one inbound response: status, headers, and the body as a
// unicast chunk channel. Terminal errors of the exchange surface through
// the channel's error signal.
type Response struct {
	Status  int
	Headers *web.Headers
	Body    *stream.Channel
}

// BodyBytes drains the whole body into memory. It is a convenience for
// consumers that do not stream.
func (r *Response) BodyBytes() ([]byte, error) {
	sink := &collectSink{done: make(chan struct{})}
	if err := r.Body.Subscribe(sink, stream.Unbounded); err != nil {
		return nil, err
	}
	<-sink.done
	return sink.data, sink.err
}

type collectSink struct {
	data []byte
	err  error
	done chan struct{}
}

func (s *collectSink) OnChunk(c *stream.Chunk) {
	s.data = append(s.data, c.Bytes()...)
	c.Release()
}

func (s *collectSink) OnComplete() { close(s.done) }

func (s *collectSink) OnError(err error) {
	s.err = err
	close(s.done)
}

// Exchange is one client-side request/response pair travelling through
// the interceptor chain toward a connection.
type Exchange struct {
	ctx     context.Context
	request *Request
	// response is nil until the transport answers — or until an
	// interceptor synthesizes one locally.
	response *Response
	aborted  bool
}

// Context returns the exchange context.
func (ex *Exchange) Context() context.Context { return ex.ctx }

// Request returns the outbound request; interceptors may mutate it.
func (ex *Exchange) Request() *Request { return ex.request }

// Response returns the response, allocating an empty one on first use so
// an aborting interceptor can fill it.
func (ex *Exchange) Response() *Response {
	if ex.response == nil {
		ex.response = &Response{Headers: web.NewHeaders(), Body: stream.NewChannel()}
	}
	return ex.response
}

// Abort short-circuits the exchange: the chain stops and the response
// filled by the interceptor is returned without any transport I/O.
func (ex *Exchange) Abort() {
	ex.aborted = true
}

// Interceptor observes and rewrites an outbound exchange before it
// reaches a connection. Returning an error fails the exchange;
// calling [Exchange.Abort] ends the chain with the locally built
// response.
type Interceptor func(ex *Exchange) error

// applyInterceptors runs the chain in declaration order.
func applyInterceptors(ex *Exchange, chain []Interceptor) error {
	for _, interceptor := range chain {
		if err := interceptor(ex); err != nil {
			return err
		}
		if ex.aborted {
			return nil
		}
	}
	return nil
}
