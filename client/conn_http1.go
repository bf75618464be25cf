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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// http1Pending is one pipelined request awaiting its response. HTTP/1.1
// responses arrive in request order, so the reader matches them FIFO.
type http1Pending struct {
	done chan http1Result
}

type http1Result struct {
	res *Response
	err error
}

// http1Conn is a pipelined HTTP/1.1 connection: requests are written as
// they arrive (up to the pipelining depth enforced by the pool) and a
// single reader goroutine consumes responses in arrival order.
//
// The pipeline is linear, so any mid-stream failure — a response
// deadline included — poisons everything behind it: the connection
// closes and every queued request fails with the same error.
type http1Conn struct {
	nc        net.Conn
	authority string
	br        *bufio.Reader
	bw        *bufio.Writer
	depth     int
	logger    *slog.Logger

	writeMu sync.Mutex // serializes request writes

	mu       sync.Mutex
	pending  []*http1Pending
	kick     chan struct{}
	closed   bool
	closeErr error
}

func newHTTP1Conn(nc net.Conn, authority string, depth int, logger *slog.Logger) *http1Conn {
	c := &http1Conn{
		nc:        nc,
		authority: authority,
		br:        bufio.NewReader(nc),
		bw:        bufio.NewWriter(nc),
		depth:     depth,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
	go c.readLoop()
	return c
}

func (c *http1Conn) protocol() Protocol { return HTTP11 }

func (c *http1Conn) capacity() int { return c.depth }

func (c *http1Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// close tears the connection down and fails every pipelined request with
// the same error.
func (c *http1Conn) close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if err == nil {
		err = web.ErrConnectionClosed
	}
	c.closeErr = err
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	_ = c.nc.Close()
	c.logger.Debug("http1 connection closed",
		"error", err, "failed_pipelined", len(pending))
	for _, p := range pending {
		p.done <- http1Result{err: err}
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// roundTrip writes the request down the pipeline and waits for its
// response. A response deadline discards the whole pipeline: the
// connection closes and the queued requests fail with the same error.
func (c *http1Conn) roundTrip(ctx context.Context, timeout time.Duration, req *Request) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	hreq, err := buildStdRequest(ctx, req, c.authority, false)
	if err != nil {
		return nil, err
	}

	p := &http1Pending{done: make(chan http1Result, 1)}
	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending = append(c.pending, p)
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}

	c.writeMu.Lock()
	err = hreq.Write(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	c.writeMu.Unlock()
	if err != nil {
		c.close(fmt.Errorf("%w: %v", web.ErrConnectionClosed, err))
		return nil, web.ErrConnectionClosed
	}

	select {
	case res := <-p.done:
		return res.res, res.err
	case <-ctx.Done():
		// The pipeline cannot skip a response: everything behind this
		// request is lost with it.
		c.close(ctx.Err())
		return nil, ctx.Err()
	}
}

// readLoop consumes responses in pipeline order, streaming each body
// into its response channel before starting on the next response.
func (c *http1Conn) readLoop() {
	for {
		p := c.nextPending()
		if p == nil {
			return
		}
		hres, err := http.ReadResponse(c.br, nil)
		if err != nil {
			werr := fmt.Errorf("%w: %v", web.ErrConnectionClosed, err)
			c.close(werr)
			// The popped entry left the pending list before the failure,
			// so close could not notify it.
			p.done <- http1Result{err: werr}
			return
		}
		res := &Response{
			Status:  hres.StatusCode,
			Headers: stdHeadersToWeb(hres.Header),
			Body:    stream.NewChannel(),
		}
		p.done <- http1Result{res: res}
		if err := pumpBody(hres.Body, res.Body); err != nil {
			c.close(fmt.Errorf("%w: %v", web.ErrConnectionClosed, err))
			return
		}
		if hres.Close {
			c.close(web.ErrConnectionClosed)
			return
		}
	}
}

// nextPending blocks until a pipelined request is available, or returns
// nil once the connection closed.
func (c *http1Conn) nextPending() *http1Pending {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		if len(c.pending) > 0 {
			p := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return p
		}
		c.mu.Unlock()
		<-c.kick
	}
}

// pumpBody copies a response body into its chunk channel.
func pumpBody(src io.ReadCloser, dst *stream.Channel) error {
	defer src.Close()
	buf := make([]byte, 8192)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := dst.Write(stream.NewChunk(append([]byte(nil), buf[:n]...))); werr != nil {
				// The consumer cancelled; drain the rest to keep the
				// pipeline aligned.
				_, _ = io.Copy(io.Discard, src)
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			dst.Close()
			return nil
		}
		if err != nil {
			dst.Fail(err)
			return err
		}
	}
}
