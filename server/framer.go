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

package server

import (
	"net/http"
	"strings"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// httpFramer writes an exchange's response through net/http, which
// already speaks the negotiated protocol: chunked transfer on HTTP/1.1
// when no Content-Length is set, HEADERS and DATA frames on HTTP/2.
// Trailers are announced before the header flush and set after the body;
// net/http drops them on an HTTP/1.1 response that is not chunked, which
// matches the transfer-encoding requirement.
type httpFramer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

var _ web.Framer = (*httpFramer)(nil)

func newHTTPFramer(w http.ResponseWriter) *httpFramer {
	f := &httpFramer{w: w}
	if fl, ok := w.(http.Flusher); ok {
		f.flusher = fl
	}
	return f
}

// WriteHeaders flushes status and headers.
func (f *httpFramer) WriteHeaders(res *web.Response, endStream bool) error {
	header := f.w.Header()
	res.Headers().All(func(name, value string) bool {
		header.Add(name, value)
		return true
	})
	if res.HasTrailers() {
		header.Set("Trailer", strings.Join(res.Trailers().Names(), ", "))
	}
	f.w.WriteHeader(res.Status())
	if !endStream && f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}

// WriteChunk writes one body chunk and flushes it, so streaming bodies
// (SSE included) reach the peer promptly.
func (f *httpFramer) WriteChunk(c *stream.Chunk) error {
	defer c.Release()
	if _, err := f.w.Write(c.Bytes()); err != nil {
		return err
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}

// Finish sets trailer values after the body; net/http emits them as
// HTTP/1.1 chunked trailers or HTTP/2 trailing HEADERS.
func (f *httpFramer) Finish(trailers *web.Headers) error {
	if trailers != nil {
		header := f.w.Header()
		trailers.All(func(name, value string) bool {
			header.Set(http.CanonicalHeaderKey(name), value)
			return true
		})
	}
	return nil
}

// Terminate aborts the response; the bridge panics the handler with
// http.ErrAbortHandler, closing the HTTP/1.1 connection or resetting the
// HTTP/2 stream.
func (f *httpFramer) Terminate(err error) {}
