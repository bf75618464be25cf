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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// http2Conn multiplexes exchanges as independent streams over one
// HTTP/2 connection. A per-request deadline resets only its own stream;
// sibling streams keep running.
type http2Conn struct {
	nc         net.Conn
	authority  string
	cc         *http2.ClientConn
	maxStreams int
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// newHTTP2Conn wraps an established connection. The connection must
// already carry the client preface: either cleartext prior-knowledge or
// a TLS session that negotiated h2.
func newHTTP2Conn(nc net.Conn, authority string, maxStreams int, logger *slog.Logger) (*http2Conn, error) {
	tr := &http2.Transport{AllowHTTP: true}
	cc, err := tr.NewClientConn(nc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", web.ErrConnectionClosed, err)
	}
	return &http2Conn{nc: nc, authority: authority, cc: cc, maxStreams: maxStreams, logger: logger}, nil
}

func (c *http2Conn) protocol() Protocol { return HTTP2 }

// capacity is the lower of the configured cap and the peer's
// SETTINGS_MAX_CONCURRENT_STREAMS.
func (c *http2Conn) capacity() int {
	limit := c.maxStreams
	if state := c.cc.State(); state.MaxConcurrentStreams > 0 && int(state.MaxConcurrentStreams) < limit {
		limit = int(state.MaxConcurrentStreams)
	}
	return limit
}

func (c *http2Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	state := c.cc.State()
	return state.Closed || state.Closing || !c.cc.CanTakeNewRequest()
}

func (c *http2Conn) close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.logger.Debug("http2 connection closed", "error", err)
	_ = c.cc.Close()
	_ = c.nc.Close()
}

// roundTrip opens one stream. The response deadline cancels only this
// stream (RST_STREAM); sibling streams on the connection keep running.
func (c *http2Conn) roundTrip(ctx context.Context, timeout time.Duration, req *Request) (*Response, error) {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	hreq, err := buildStdRequest(ctx, req, c.authority, true)
	if err != nil {
		cancel()
		return nil, err
	}
	hres, err := c.cc.RoundTrip(hreq)
	if err != nil {
		defer cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isConnError(err) {
			c.close(err)
			return nil, fmt.Errorf("%w: %v", web.ErrConnectionClosed, err)
		}
		return nil, err
	}

	res := &Response{
		Status:  hres.StatusCode,
		Headers: stdHeadersToWeb(hres.Header),
		Body:    stream.NewChannel(),
	}
	// The stream context is released once the body drains, keeping the
	// deadline armed while it flows.
	go func() {
		defer cancel()
		_ = pumpBody(hres.Body, res.Body)
	}()
	return res, nil
}

// isConnError reports failures that poison the whole connection rather
// than a single stream.
func isConnError(err error) bool {
	if errors.Is(err, http2.ErrNoCachedConn) {
		return true
	}
	var ge http2.GoAwayError
	return errors.As(err, &ge)
}
