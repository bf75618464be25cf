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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/web"
)

// loopKey carries the connection's event loop through the request
// context; every exchange of a connection runs on the same loop.
type loopKey struct{}

// Server hosts a web handler over HTTP/1.1 and, when enabled, HTTP/2.
type Server struct {
	cfg     serverConfig
	handler web.Handler
	loops   *stream.Group
	obs     *observability

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// New returns an unstarted server for the handler.
func New(handler web.Handler, opts ...Option) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{cfg: cfg, handler: handler}
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Listen binds the configured address without serving yet.
func (s *Server) Listen() (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.host, strconv.Itoa(s.cfg.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return ln, nil
}

// Serve accepts connections on ln. It blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.loops = stream.NewGroup(s.cfg.loopCount)

	obs, err := newObservability(s.cfg)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.obs = obs

	var handler http.Handler = http.HandlerFunc(s.serveHTTP)
	if s.cfg.metricsPath != "" {
		handler = obs.wrap(s.cfg.metricsPath, handler)
	}

	h2srv := &http2.Server{MaxConcurrentStreams: uint32(s.cfg.maxStreams)}
	if s.cfg.h2cEnabled && s.cfg.tlsConfig == nil {
		handler = h2c.NewHandler(handler, h2srv)
	}

	hs := &http.Server{
		Handler: handler,
		// Pin every connection to one event loop for its lifetime.
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			return context.WithValue(ctx, loopKey{}, s.loops.Next())
		},
	}
	if s.cfg.tlsConfig != nil {
		hs.TLSConfig = s.cfg.tlsConfig.Clone()
		if err := http2.ConfigureServer(hs, h2srv); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.httpServer = hs
	s.mu.Unlock()

	s.cfg.logger.Info("server started",
		"addr", ln.Addr().String(),
		"h2c", s.cfg.h2cEnabled,
		"tls", s.cfg.tlsConfig != nil)

	if s.cfg.tlsConfig != nil {
		err = hs.ServeTLS(ln, "", "")
	} else {
		err = hs.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight exchanges and stops the loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	loops := s.loops
	obs := s.obs
	s.mu.Unlock()

	var err error
	if hs != nil {
		err = hs.Shutdown(ctx)
	}
	if loops != nil {
		loops.Close()
	}
	if obs != nil {
		obs.shutdown(ctx)
	}
	return err
}

// serveHTTP bridges one net/http request into an exchange on the
// connection's event loop and blocks until the exchange terminates.
func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	loop, _ := r.Context().Value(loopKey{}).(*stream.Loop)
	if loop == nil {
		// h2c upgrades run streams on server-owned goroutines; fall back
		// to a shared loop.
		loop = s.loops.Next()
	}

	headers := web.NewHeaders()
	for name, values := range r.Header {
		for _, v := range values {
			_ = headers.Add(name, v)
		}
	}
	if r.Host != "" {
		_ = headers.Add("host", r.Host)
	}

	var body *stream.Channel
	if r.ContentLength != 0 && hasBody(r.Method) {
		body = s.pumpRequestBody(r)
	}

	target := r.URL.RequestURI()
	req := web.NewRequest(r.Method, target, headers, r.RemoteAddr, body)

	opts := []web.ExchangeOption{web.WithLogger(s.cfg.logger)}
	if s.cfg.errorHandler != nil {
		opts = append(opts, web.WithErrorHandler(s.cfg.errorHandler))
	}

	ctx, span := s.obs.tracer.Start(r.Context(), r.Method+" "+r.URL.Path)

	framer := newHTTPFramer(w)
	ex := web.NewExchange(ctx, loop, req, framer, s.handler, opts...)

	done := make(chan error, 1)
	ex.OnDone(func(state web.State, err error) {
		s.obs.record(r, ex, state)
		span.End()
		done <- err
	})
	ex.Start()

	if err := <-done; err != nil {
		// Mid-stream failure: net/http closes the HTTP/1.1 connection or
		// resets the HTTP/2 stream.
		panic(http.ErrAbortHandler)
	}
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// pumpRequestBody streams the request body into a chunk channel with
// watermark flow control: reads pause while the handler lags and resume
// as the buffer drains.
func (s *Server) pumpRequestBody(r *http.Request) *stream.Channel {
	gate := newGate()
	ch := stream.NewChannel(
		stream.WithWatermarks(32, 8),
		stream.WithFlowControl(gate.pause, gate.resume),
		stream.WithCancelHook(func(error) { _ = r.Body.Close() }),
	)

	limit := s.cfg.bodyLimit
	go func() {
		var total int64
		buf := make([]byte, 8192)
		for {
			gate.wait()
			n, err := r.Body.Read(buf)
			if n > 0 {
				total += int64(n)
				if limit > 0 && total > limit {
					ch.Fail(web.NewPayloadTooLarge(limit))
					return
				}
				if werr := ch.Write(stream.NewChunk(append([]byte(nil), buf[:n]...))); werr != nil {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				ch.Close()
				return
			}
			if err != nil {
				ch.Fail(web.NewBadRequest("reading request body: %v", err))
				return
			}
		}
	}()
	return ch
}

// gate blocks a producer while the downstream buffer is above its
// watermark.
type gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

func (g *gate) resume() {
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *gate) wait() {
	g.mu.Lock()
	for g.paused {
		g.cond.Wait()
	}
	g.mu.Unlock()
}
