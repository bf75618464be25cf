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
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxhq/velox/stream"
)

// fakeFramer records everything the engine writes.
type fakeFramer struct {
	status     int
	headers    *Headers
	endStream  bool
	body       []byte
	chunks     int
	finished   bool
	trailers   *Headers
	terminated error

	chunkErr error // injected failure on WriteChunk
}

func (f *fakeFramer) WriteHeaders(res *Response, endStream bool) error {
	f.status = res.Status()
	f.headers = res.Headers().Clone()
	f.endStream = endStream
	return nil
}

func (f *fakeFramer) WriteChunk(c *stream.Chunk) error {
	defer c.Release()
	if f.chunkErr != nil {
		return f.chunkErr
	}
	f.chunks++
	f.body = append(f.body, c.Bytes()...)
	return nil
}

func (f *fakeFramer) Finish(trailers *Headers) error {
	f.finished = true
	f.trailers = trailers
	return nil
}

func (f *fakeFramer) Terminate(err error) {
	f.terminated = err
}

// runExchange drives a handler to its terminal state and returns the
// exchange plus the framer transcript.
func runExchange(t *testing.T, handler Handler, opts ...ExchangeOption) (*Exchange, *fakeFramer) {
	t.Helper()
	framer := &fakeFramer{}
	ex, _ := startExchange(t, handler, framer, opts...)
	return ex, framer
}

func startExchange(t *testing.T, handler Handler, framer *fakeFramer, opts ...ExchangeOption) (*Exchange, chan State) {
	t.Helper()
	loop := stream.NewLoop()
	t.Cleanup(loop.Close)

	req := NewRequest("GET", "/test", NewHeaders(), "127.0.0.1:1234", nil)
	ex := NewExchange(context.Background(), loop, req, framer, handler, opts...)

	done := make(chan State, 1)
	ex.OnDone(func(s State, err error) { done <- s })
	ex.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not reach a terminal state")
	}
	return ex, done
}

func TestExchangeValueBody(t *testing.T) {
	ex, framer := runExchange(t, func(ex *Exchange) error {
		require.NoError(t, ex.Response().Headers().Set("content-type", "text/plain"))
		return ex.Response().String("hello")
	})

	assert.Equal(t, StateComplete, ex.State())
	assert.Equal(t, http.StatusOK, framer.status)
	assert.Equal(t, "hello", string(framer.body))
	assert.True(t, framer.finished)
	assert.Equal(t, int64(5), ex.Transferred())

	// A single response gets its Content-Length fixed up front.
	assert.Equal(t, int64(5), framer.headers.ContentLength())
}

func TestExchangeEmptyBody(t *testing.T) {
	ex, framer := runExchange(t, func(ex *Exchange) error {
		return ex.Response().Empty()
	})

	assert.Equal(t, StateComplete, ex.State())
	assert.True(t, framer.endStream)
	assert.Zero(t, framer.chunks)
	assert.Equal(t, int64(0), framer.headers.ContentLength())
}

func TestExchangeStreamingBody(t *testing.T) {
	ch := stream.NewChannel()
	ex, framer := runExchange(t, func(ex *Exchange) error {
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		// Feed the body from outside the handler, as a streaming
		// producer would.
		go func() {
			_ = ch.Write(stream.NewChunk([]byte("part1")))
			_ = ch.Write(stream.NewChunk([]byte("part2")))
			ch.Close()
		}()
		return nil
	})

	assert.Equal(t, StateComplete, ex.State())
	assert.Equal(t, "part1part2", string(framer.body))
	assert.Equal(t, int64(10), ex.Transferred())

	// Streaming responses carry no Content-Length; framing is chunked
	// transfer or DATA frames.
	assert.Equal(t, int64(-1), framer.headers.ContentLength())
}

func TestExchangeStreamingZeroBytes(t *testing.T) {
	ch := stream.NewChannel()
	ch.Close()
	_, framer := runExchange(t, func(ex *Exchange) error {
		return ex.Response().Publisher(ch)
	})

	// Completion with zero bytes fixes Content-Length at 0.
	assert.Equal(t, int64(0), framer.headers.ContentLength())
	assert.True(t, framer.finished)
}

func TestExchangeHandlerError(t *testing.T) {
	ex, framer := runExchange(t, func(ex *Exchange) error {
		return NewNotFound("/test")
	})

	assert.Equal(t, StateComplete, ex.State(), "error recovery completes the exchange")
	assert.Equal(t, http.StatusNotFound, framer.status)
	assert.Contains(t, string(framer.body), "no resource at /test")
}

func TestExchangeHandlerPanic(t *testing.T) {
	_, framer := runExchange(t, func(ex *Exchange) error {
		panic("boom")
	})
	assert.Equal(t, http.StatusInternalServerError, framer.status)
}

func TestExchangeMethodNotAllowedHeaders(t *testing.T) {
	_, framer := runExchange(t, func(ex *Exchange) error {
		return NewMethodNotAllowed("GET", "HEAD")
	})

	assert.Equal(t, http.StatusMethodNotAllowed, framer.status)
	allow, ok := framer.headers.Get("allow")
	assert.True(t, ok)
	assert.Equal(t, "GET, HEAD", allow)
}

func TestExchangeBodyErrorBeforeHeaders(t *testing.T) {
	ch := stream.NewChannel()
	ch.Fail(errors.New("producer exploded"))

	ex, framer := runExchange(t, func(ex *Exchange) error {
		return ex.Response().Publisher(ch)
	})

	// Nothing was flushed, so the engine recovers to an error response
	// and resets the transferred counter.
	assert.Equal(t, StateComplete, ex.State())
	assert.Equal(t, http.StatusInternalServerError, framer.status)
	assert.Nil(t, framer.terminated)
}

func TestExchangeBodyErrorAfterHeaders(t *testing.T) {
	ch := stream.NewChannel()
	boom := errors.New("mid-stream failure")
	ex, framer := runExchange(t, func(ex *Exchange) error {
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		// Runs after the engine subscribed, so the chunk is delivered
		// (flushing headers) before the failure lands.
		ex.ExecuteInEventLoop(func() {
			_ = ch.Write(stream.NewChunk([]byte("partial")))
			ch.Fail(boom)
		})
		return nil
	})

	// Part of the response is on the wire: no recovery, the stream is
	// torn down.
	assert.Equal(t, StateFailed, ex.State())
	assert.ErrorIs(t, framer.terminated, boom)
	assert.ErrorIs(t, ex.Err(), boom)
}

func TestExchangeErrorHandlerFailure(t *testing.T) {
	failing := func(ex *Exchange, cause error) error {
		return errors.New("error handler broke too")
	}
	ex, framer := runExchange(t,
		func(ex *Exchange) error { return NewBadRequest("nope") },
		WithErrorHandler(failing),
	)

	// The last-resort handler emits a status-only response.
	assert.Equal(t, StateComplete, ex.State())
	assert.Equal(t, http.StatusBadRequest, framer.status)
	assert.Empty(t, framer.body)
}

func TestExchangeHeaderMutationAfterFlush(t *testing.T) {
	var mutationErr error
	ch := stream.NewChannel()
	ex, _ := runExchange(t, func(ex *Exchange) error {
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		ex.ExecuteInEventLoop(func() {
			_ = ch.Write(stream.NewChunk([]byte("flowing")))
			// The body started flowing, so headers are frozen by the
			// time this later loop task runs.
			ex.ExecuteInEventLoop(func() {
				mutationErr = ex.Response().Headers().Set("x", "y")
				ch.Close()
			})
		})
		return nil
	})

	assert.Equal(t, StateComplete, ex.State())
	assert.ErrorIs(t, mutationErr, ErrHeadersAlreadyWritten)
}

func TestExchangeCookiesMaterializedOnFlush(t *testing.T) {
	_, framer := runExchange(t, func(ex *Exchange) error {
		if err := ex.Response().SetCookie(&http.Cookie{Name: "sid", Value: "1"}); err != nil {
			return err
		}
		return ex.Response().String("ok")
	})
	values := framer.headers.Values("set-cookie")
	require.Len(t, values, 1)
	assert.Contains(t, values[0], "sid=1")
}

func TestExchangeTrailers(t *testing.T) {
	_, framer := runExchange(t, func(ex *Exchange) error {
		if err := ex.Response().Trailers().Set("x-checksum", "abc"); err != nil {
			return err
		}
		return ex.Response().String("body")
	})

	require.NotNil(t, framer.trailers)
	v, ok := framer.trailers.Get("x-checksum")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestExchangeChunkWriteFailure(t *testing.T) {
	framer := &fakeFramer{chunkErr: errors.New("conn reset")}
	ex, _ := startExchange(t, func(ex *Exchange) error {
		return ex.Response().String("data")
	}, framer)

	assert.Equal(t, StateFailed, ex.State())
	assert.ErrorIs(t, framer.terminated, framer.chunkErr)
}
