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
	"crypto/tls"
	"io"
	"log/slog"
	"runtime"

	"github.com/veloxhq/velox/web"
)

const (
	defaultHost       = "0.0.0.0"
	defaultPort       = 8080
	defaultMaxStreams = 100
)

type serverConfig struct {
	host         string
	port         int
	h2cEnabled   bool
	tlsConfig    *tls.Config
	maxStreams   int
	bodyLimit    int64 // 0 = unlimited
	loopCount    int
	logger       *slog.Logger
	errorHandler web.ErrorHandler
	metricsPath  string
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		host:       defaultHost,
		port:       defaultPort,
		maxStreams: defaultMaxStreams,
		loopCount:  runtime.GOMAXPROCS(0),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a server.
type Option func(*serverConfig)

// WithHost sets the bind address.
func WithHost(host string) Option {
	return func(c *serverConfig) { c.host = host }
}

// WithPort sets the bind port. Port 0 picks a free one.
func WithPort(port int) Option {
	return func(c *serverConfig) { c.port = port }
}

// WithH2C accepts HTTP/2 over cleartext, both upgrade and prior
// knowledge.
func WithH2C() Option {
	return func(c *serverConfig) { c.h2cEnabled = true }
}

// WithTLS serves HTTPS with ALPN-negotiated HTTP/2. The certificate
// chain and key come from the supplied configuration.
func WithTLS(cfg *tls.Config) Option {
	return func(c *serverConfig) { c.tlsConfig = cfg }
}

// WithHTTP2MaxConcurrentStreams caps streams per HTTP/2 connection.
func WithHTTP2MaxConcurrentStreams(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxStreams = n
		}
	}
}

// WithRequestBodyLimit rejects request bodies over n bytes with a
// payload-too-large error.
func WithRequestBodyLimit(n int64) Option {
	return func(c *serverConfig) { c.bodyLimit = n }
}

// WithEventLoops sets the event-loop worker count. Defaults to
// GOMAXPROCS.
func WithEventLoops(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.loopCount = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler replaces the engine's default error handler.
func WithErrorHandler(h web.ErrorHandler) Option {
	return func(c *serverConfig) { c.errorHandler = h }
}

// WithMetricsEndpoint exposes Prometheus metrics at the given path. The
// server's own instruments then record through a Prometheus-backed meter
// provider; the process-wide meter provider is left unchanged.
func WithMetricsEndpoint(path string) Option {
	return func(c *serverConfig) {
		if path != "" {
			c.metricsPath = path
		}
	}
}
