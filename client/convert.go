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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// buildStdRequest converts an outbound Request into the net/http form
// the transports write. h2 requests need an absolute URL with scheme and
// host; HTTP/1.1 writes the origin form.
func buildStdRequest(ctx context.Context, req *Request, authority string, h2 bool) (*http.Request, error) {
	target := req.Target
	if target == "" {
		target = "/"
	}
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, fmt.Errorf("client: invalid request target %q: %v", target, err)
	}

	var body io.Reader
	var contentLength int64 = -1
	switch {
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
		contentLength = int64(len(req.Body))
	case req.BodyPublisher != nil:
		body = newChannelReader(req.BodyPublisher)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	hreq.URL = u
	if contentLength >= 0 {
		hreq.ContentLength = contentLength
	}

	host := ""
	if req.Headers != nil {
		req.Headers.All(func(name, value string) bool {
			if strings.EqualFold(name, "host") {
				host = value
				return true
			}
			hreq.Header.Add(name, value)
			return true
		})
	}
	if host == "" {
		host = authority
	}
	hreq.Host = host
	if h2 {
		hreq.URL.Scheme = "http"
		if hreq.URL.Host == "" {
			hreq.URL.Host = hreq.Host
		}
	}
	return hreq, nil
}

// stdHeadersToWeb copies net/http headers into the web multimap.
func stdHeadersToWeb(h http.Header) *web.Headers {
	out := web.NewHeaders()
	for name, values := range h {
		for _, v := range values {
			_ = out.Add(name, v)
		}
	}
	out.MarkWritten()
	return out
}

// channelReader adapts a chunk publisher into an io.Reader for request
// body streaming.
type channelReader struct {
	chunks chan []byte
	errs   chan error
	buf    []byte
	err    error
}

func newChannelReader(ch *stream.Channel) *channelReader {
	r := &channelReader{
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
	}
	if err := ch.Subscribe(r, stream.Unbounded); err != nil {
		r.errs <- err
		close(r.chunks)
	}
	return r
}

func (r *channelReader) OnChunk(c *stream.Chunk) {
	r.chunks <- append([]byte(nil), c.Bytes()...)
	c.Release()
}

func (r *channelReader) OnComplete() {
	close(r.chunks)
}

func (r *channelReader) OnError(err error) {
	r.errs <- err
	close(r.chunks)
}

func (r *channelReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, ok := <-r.chunks
		if !ok {
			select {
			case err := <-r.errs:
				r.err = err
			default:
				r.err = io.EOF
			}
			return 0, r.err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
