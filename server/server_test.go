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
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"

	"github.com/veloxhq/velox/form"
	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// startServer runs the handler on a random port and returns its base
// URL.
func startServer(t *testing.T, handler web.Handler, opts ...Option) string {
	t.Helper()
	opts = append([]Option{WithHost("127.0.0.1"), WithPort(0)}, opts...)
	s := New(handler, opts...)
	ln, err := s.Listen()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, s.Shutdown(ctx))
		require.NoError(t, <-done)
	})
	return "http://" + ln.Addr().String()
}

func TestServerBasicExchange(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		if err := ex.Response().Headers().Set("content-type", "text/plain"); err != nil {
			return err
		}
		return ex.Response().String("hello from " + ex.Request().Path())
	})

	res, err := http.Get(base + "/greet")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/plain", res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello from /greet", string(body))
	// A value body is single: Content-Length instead of chunked.
	assert.Equal(t, int64(len(body)), res.ContentLength)
}

func TestServerQueryAndCookies(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		q, _ := ex.Request().QueryParameter("q")
		c, _ := ex.Request().Cookie("session")
		return ex.Response().String(q + "|" + c)
	})

	req, _ := http.NewRequest("GET", base+"/find?q=term", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "s1"})
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, "term|s1", string(body))
}

func TestServerErrorRecovery(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		switch ex.Request().Path() {
		case "/missing":
			return web.NewNotFound(ex.Request().Target())
		case "/panic":
			panic("handler exploded")
		default:
			return web.NewMethodNotAllowed("PUT")
		}
	})

	t.Run("not found", func(t *testing.T) {
		res, err := http.Get(base + "/missing")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("panic maps to 500", func(t *testing.T) {
		res, err := http.Get(base + "/panic")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})

	t.Run("method not allowed carries Allow", func(t *testing.T) {
		res, err := http.Get(base + "/other")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
		assert.Equal(t, "PUT", res.Header.Get("Allow"))
	})
}

func TestServerStreamingResponse(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		ch := stream.NewChannel()
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		go func() {
			for i := 1; i <= 3; i++ {
				_ = ch.Write(stream.NewChunk([]byte(fmt.Sprintf("part%d;", i))))
			}
			ch.Close()
		}()
		return nil
	})

	res, err := http.Get(base + "/stream")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "part1;part2;part3;", string(body))
	// Streaming has no up-front length.
	assert.Equal(t, int64(-1), res.ContentLength)
}

func TestServerURLEncodedBody(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		body, ok := ex.Request().Body()
		if !ok {
			return web.NewBadRequest("missing body")
		}
		var got []string
		done := make(chan struct{})
		err := body.URLEncoded(func(p form.Parameter) {
			if !p.Partial {
				got = append(got, p.Name+"="+p.Value)
			}
			if p.Last {
				close(done)
			}
		}, nil)
		if err != nil {
			return err
		}
		<-done
		return ex.Response().String(strings.Join(got, "&"))
	})

	res, err := http.Post(base+"/submit",
		"application/x-www-form-urlencoded",
		strings.NewReader("a=1&b=two+words"))
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, "a=1&b=two words", string(body))
}

func TestServerMultipartBody(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		body, ok := ex.Request().Body()
		if !ok {
			return web.NewBadRequest("missing body")
		}
		var names []string
		done := make(chan error, 1)
		_, err := body.Multipart(
			func(p *form.Part) {
				names = append(names, p.FormName())
				p.Release()
			},
			func(err error) { done <- err },
		)
		if err != nil {
			return err
		}
		if err := <-done; err != nil {
			return web.NewBadRequest("multipart: %v", err)
		}
		return ex.Response().String(strings.Join(names, ","))
	})

	var payload strings.Builder
	mw := multipart.NewWriter(&payload)
	_ = mw.WriteField("alpha", "1")
	_ = mw.WriteField("beta", "2")
	_ = mw.Close()

	res, err := http.Post(base+"/upload", mw.FormDataContentType(), strings.NewReader(payload.String()))
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, "alpha,beta", string(body))
}

func TestServerSSE(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		enc := web.NewSSEEncoder(stream.NewChannel())
		if err := enc.Attach(ex.Response()); err != nil {
			return err
		}
		go func() {
			_ = enc.Send(web.SSEEvent{ID: "1", Type: "tick", Data: "first"})
			_ = enc.Send(web.SSEEvent{Data: "second"})
			enc.Close()
		}()
		return nil
	})

	res, err := http.Get(base + "/events")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "id:1\nevent:tick\ndata:first\n\ndata:second\n\n", string(body))
}

func TestServerH2C(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		return ex.Response().String("over h2")
	}, WithH2C())

	// Prior-knowledge HTTP/2 client.
	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
	res, err := client.Get(base + "/h2")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 2, res.ProtoMajor)
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, "over h2", string(body))
}

func TestServerBodyLimit(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		body, ok := ex.Request().Body()
		if !ok {
			return web.NewBadRequest("missing body")
		}
		ch, err := body.Raw()
		if err != nil {
			return err
		}
		done := make(chan error, 1)
		err = ch.Subscribe(subscriberFuncs{
			onChunk:    func(c *stream.Chunk) { c.Release() },
			onComplete: func() { done <- nil },
			onError:    func(err error) { done <- err },
		}, stream.Unbounded)
		if err != nil {
			return err
		}
		if err := <-done; err != nil {
			return err
		}
		return ex.Response().String("accepted")
	}, WithRequestBodyLimit(16))

	res, err := http.Post(base+"/upload", "application/octet-stream",
		strings.NewReader(strings.Repeat("x", 64)))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

// subscriberFuncs adapts closures to stream.Subscriber.
type subscriberFuncs struct {
	onChunk    func(*stream.Chunk)
	onComplete func()
	onError    func(error)
}

func (s subscriberFuncs) OnChunk(c *stream.Chunk) { s.onChunk(c) }

func (s subscriberFuncs) OnComplete() { s.onComplete() }

func (s subscriberFuncs) OnError(err error) { s.onError(err) }

func TestServerPostFlushFailureClosesConnection(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		ch := stream.NewChannel()
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		ex.ExecuteInEventLoop(func() {
			_ = ch.Write(stream.NewChunk([]byte("partial")))
			ch.Fail(fmt.Errorf("producer died"))
		})
		return nil
	})

	res, err := http.Get(base + "/broken")
	require.NoError(t, err)
	defer res.Body.Close()

	// Headers made it out before the failure; the body is cut short.
	assert.Equal(t, http.StatusOK, res.StatusCode)
	_, err = io.ReadAll(res.Body)
	assert.Error(t, err)
}

func TestServerMetricsEndpoint(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		return ex.Response().String("ok")
	}, WithMetricsEndpoint("/metrics"))

	_, err := http.Get(base + "/work")
	require.NoError(t, err)

	res, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "velox_server_exchanges")
}

func TestServerTrailers(t *testing.T) {
	base := startServer(t, func(ex *web.Exchange) error {
		ch := stream.NewChannel()
		if err := ex.Response().Trailers().Set("x-checksum", "abc123"); err != nil {
			return err
		}
		if err := ex.Response().Publisher(ch); err != nil {
			return err
		}
		go func() {
			_ = ch.Write(stream.NewChunk([]byte("payload")))
			ch.Close()
		}()
		return nil
	})

	// Raw HTTP/1.1 exchange: trailers require chunked transfer.
	addr := strings.TrimPrefix(base, "http://")
	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer nc.Close()

	_, err = fmt.Fprintf(nc, "GET /t HTTP/1.1\r\nHost: %s\r\n\r\n", addr)
	require.NoError(t, err)

	hres, err := http.ReadResponse(bufio.NewReader(nc), nil)
	require.NoError(t, err)
	body, err := io.ReadAll(hres.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "abc123", hres.Trailer.Get("X-Checksum"))
}
