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
	"crypto/tls"
	"io"
	"log/slog"
	"time"
)

// Protocol is an HTTP protocol version the client may speak.
type Protocol int

const (
	// HTTP11 is HTTP/1.1 with optional pipelining.
	HTTP11 Protocol = iota
	// HTTP2 is HTTP/2, cleartext prior-knowledge or TLS ALPN.
	HTTP2
)

func (p Protocol) String() string {
	if p == HTTP2 {
		return "HTTP/2.0"
	}
	return "HTTP/1.1"
}

const (
	defaultPoolMaxSize   = 2
	defaultPipelineDepth = 10
	defaultMaxStreams    = 100
	defaultDialTimeout   = 10 * time.Second
)

// config carries the endpoint settings.
type config struct {
	poolMaxSize    int
	requestTimeout time.Duration
	pipelineDepth  int
	maxStreams     int
	protocols      []Protocol
	tlsConfig      *tls.Config
	dialTimeout    time.Duration
	logger         *slog.Logger
	interceptors   []Interceptor
}

func defaultClientConfig() config {
	return config{
		poolMaxSize:   defaultPoolMaxSize,
		pipelineDepth: defaultPipelineDepth,
		maxStreams:    defaultMaxStreams,
		protocols:     []Protocol{HTTP11},
		dialTimeout:   defaultDialTimeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures an endpoint.
type Option func(*config)

// WithPoolMaxSize caps the endpoint's connection pool.
func WithPoolMaxSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolMaxSize = n
		}
	}
}

// WithRequestTimeout sets the per-request response deadline. Zero
// disables the timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) { c.requestTimeout = d }
}

// WithHTTP1MaxConcurrentRequests sets the HTTP/1.1 pipelining depth.
func WithHTTP1MaxConcurrentRequests(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pipelineDepth = n
		}
	}
}

// WithHTTP2MaxConcurrentStreams caps concurrent HTTP/2 streams per
// connection. The peer's SETTINGS value applies when lower.
func WithHTTP2MaxConcurrentStreams(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxStreams = n
		}
	}
}

// WithProtocols selects the protocol versions the endpoint may use. The
// order of the list carries no preference: over TLS, h2 is offered first
// whenever HTTP2 is listed; over cleartext, HTTP/2 with prior knowledge is
// used only when HTTP2 is the sole protocol.
func WithProtocols(protocols ...Protocol) Option {
	return func(c *config) {
		if len(protocols) > 0 {
			c.protocols = protocols
		}
	}
}

// WithTLS enables TLS with the given configuration.
func WithTLS(cfg *tls.Config) Option {
	return func(c *config) { c.tlsConfig = cfg }
}

// WithLogger sets the endpoint logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInterceptor appends interceptors to the endpoint chain. They run
// in declaration order.
func WithInterceptor(interceptors ...Interceptor) Option {
	return func(c *config) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// wantsHTTP2 reports whether HTTP/2 is among the configured protocols.
func (c *config) wantsHTTP2() bool {
	for _, p := range c.protocols {
		if p == HTTP2 {
			return true
		}
	}
	return false
}
