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
	"net/http"

	"github.com/veloxhq/velox/stream"
)

// bodyKind tags the response body variant.
type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyValue
	bodyPublisher
)

// Response is the mutable half of an exchange until its headers flush:
// status, headers, cookies (materialized into set-cookie headers on
// flush), an optional trailer block, and a body that is either empty, a
// known-length value, or a chunk publisher.
//
// A value body is "single": its length is knowable before the first
// write, so the engine emits Content-Length. A publisher body streams
// with chunked framing on HTTP/1.1 or plain DATA frames on HTTP/2.
type Response struct {
	status   int
	headers  *Headers
	trailers *Headers
	cookies  []*http.Cookie

	kind      bodyKind
	value     []byte
	publisher *stream.Channel
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{status: http.StatusOK, headers: NewHeaders()}
}

// Status returns the response status.
func (r *Response) Status() int { return r.status }

// SetStatus sets the response status. It fails once headers are written.
func (r *Response) SetStatus(status int) error {
	if r.headers.Written() {
		return ErrHeadersAlreadyWritten
	}
	r.status = status
	return nil
}

// Headers returns the response headers.
func (r *Response) Headers() *Headers { return r.headers }

// Trailers returns the trailer block, allocating it on first use.
// Trailers ride HTTP/2 streams natively; on HTTP/1.1 they require
// chunked transfer encoding and are dropped otherwise.
func (r *Response) Trailers() *Headers {
	if r.trailers == nil {
		r.trailers = NewHeaders()
	}
	return r.trailers
}

// HasTrailers reports whether any trailer was set.
func (r *Response) HasTrailers() bool {
	return r.trailers != nil && r.trailers.Len() > 0
}

// SetCookie adds a response cookie, materialized as a set-cookie header
// when the headers flush.
func (r *Response) SetCookie(c *http.Cookie) error {
	if r.headers.Written() {
		return ErrHeadersAlreadyWritten
	}
	r.cookies = append(r.cookies, c)
	return nil
}

// Empty selects an empty body.
func (r *Response) Empty() error {
	if r.headers.Written() {
		return ErrHeadersAlreadyWritten
	}
	r.kind = bodyEmpty
	r.value = nil
	r.publisher = nil
	return nil
}

// Value selects a known-length body, making the response single.
func (r *Response) Value(data []byte) error {
	if r.headers.Written() {
		return ErrHeadersAlreadyWritten
	}
	r.kind = bodyValue
	r.value = data
	r.publisher = nil
	return nil
}

// String selects a known-length text body.
func (r *Response) String(s string) error {
	return r.Value([]byte(s))
}

// Publisher selects a streaming body fed by the given channel. The
// engine subscribes to it exactly once; replaying requires an explicit
// buffering decorator upstream.
func (r *Response) Publisher(ch *stream.Channel) error {
	if r.headers.Written() {
		return ErrHeadersAlreadyWritten
	}
	r.kind = bodyPublisher
	r.publisher = ch
	r.value = nil
	return nil
}

// Single reports whether the body length is knowable before the first
// write.
func (r *Response) Single() bool {
	return r.kind != bodyPublisher
}

// reset rebuilds the response for error recovery: status, headers,
// cookies and body all start over. Only legal before headers are
// written.
func (r *Response) reset() {
	r.status = http.StatusOK
	r.headers = NewHeaders()
	r.trailers = nil
	r.cookies = nil
	r.kind = bodyEmpty
	r.value = nil
	r.publisher = nil
}
