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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/veloxhq/velox/web"
)

// Endpoint addresses one (host, port, scheme) peer. It owns a bounded
// connection pool and an interceptor chain; endpoints own themselves
// until Shutdown.
type Endpoint struct {
	scheme string
	host   string
	port   int
	cfg    config
	pool   *Pool

	requests metric.Int64Counter
	failures metric.Int64Counter
	attrs    attribute.Set
}

// NewEndpoint returns an endpoint for the peer. scheme is "http" or
// "https"; https requires WithTLS.
func NewEndpoint(scheme, host string, port int, opts ...Option) *Endpoint {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Endpoint{scheme: scheme, host: host, port: port, cfg: cfg}
	e.pool = NewPool(cfg.poolMaxSize, e.dialConn)

	meter := otel.GetMeterProvider().Meter("velox/client")
	e.requests, _ = meter.Int64Counter("velox.client.requests",
		metric.WithDescription("Outbound requests by endpoint"))
	e.failures, _ = meter.Int64Counter("velox.client.failures",
		metric.WithDescription("Failed outbound requests by endpoint"))
	e.attrs = attribute.NewSet(
		attribute.String("server.address", host),
		attribute.Int("server.port", port),
	)
	return e
}

// Address returns the peer host:port.
func (e *Endpoint) Address() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// Pool returns the endpoint's connection pool.
func (e *Endpoint) Pool() *Pool { return e.pool }

// Shutdown closes the pool and its connections.
func (e *Endpoint) Shutdown() {
	e.pool.Close()
}

// Send drives one exchange: the interceptor chain first, then a pooled
// connection. An aborting interceptor's synthesized response returns
// without any transport I/O. The configured request timeout bounds the
// whole response wait and surfaces as a RequestTimeout error.
func (e *Endpoint) Send(ctx context.Context, req *Request) (*Response, error) {
	e.requests.Add(ctx, 1, metric.WithAttributeSet(e.attrs))

	ex := &Exchange{ctx: ctx, request: req}
	if err := applyInterceptors(ex, e.cfg.interceptors); err != nil {
		e.failures.Add(ctx, 1, metric.WithAttributeSet(e.attrs))
		return nil, err
	}
	if ex.aborted {
		res := ex.Response()
		res.Body.Close()
		return res, nil
	}

	res, err := e.send(ctx, ex.request)
	if err != nil {
		e.failures.Add(ctx, 1, metric.WithAttributeSet(e.attrs))
		return nil, err
	}
	return res, nil
}

func (e *Endpoint) send(ctx context.Context, req *Request) (*Response, error) {
	timeout := e.cfg.requestTimeout

	pc, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, e.mapError(err, timeout)
	}

	res, err := pc.roundTrip(ctx, timeout, req)
	if err != nil {
		if pc.isClosed() {
			e.pool.Discard(pc, err)
		} else {
			e.pool.Release(pc)
		}
		return nil, e.mapError(err, timeout)
	}
	e.pool.Release(pc)
	return res, nil
}

// mapError converts a deadline into the web timeout error; transport
// errors pass through.
func (e *Endpoint) mapError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return web.NewRequestTimeout(timeout)
	}
	return err
}

// dialConn opens one connection, selecting the protocol version:
// TLS ALPN picks h2 when negotiated, cleartext uses HTTP/2 with prior
// knowledge when it is the only configured protocol, and HTTP/1.1
// otherwise. A peer that tears the connection down during the HTTP/2
// preface surfaces ConnectionClosed; the pool discards the slot, so the
// next request dials fresh.
func (e *Endpoint) dialConn(ctx context.Context) (conn, error) {
	dialer := &net.Dialer{Timeout: e.cfg.dialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", e.Address())
	if err != nil {
		return nil, err
	}

	if e.cfg.tlsConfig != nil {
		tcfg := e.cfg.tlsConfig.Clone()
		if tcfg.ServerName == "" {
			tcfg.ServerName = e.host
		}
		if e.cfg.wantsHTTP2() {
			tcfg.NextProtos = append([]string{"h2"}, tcfg.NextProtos...)
		}
		tc := tls.Client(nc, tcfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("%w: %v", web.ErrConnectionClosed, err)
		}
		if tc.ConnectionState().NegotiatedProtocol == "h2" {
			return newHTTP2Conn(tc, e.Address(), e.cfg.maxStreams, e.cfg.logger)
		}
		return newHTTP1Conn(tc, e.Address(), e.cfg.pipelineDepth, e.cfg.logger), nil
	}

	if e.cfg.wantsHTTP2() && len(e.cfg.protocols) == 1 {
		// Cleartext HTTP/2 with prior knowledge.
		c, err := newHTTP2Conn(nc, e.Address(), e.cfg.maxStreams, e.cfg.logger)
		if err != nil {
			_ = nc.Close()
			return nil, err
		}
		return c, nil
	}
	return newHTTP1Conn(nc, e.Address(), e.cfg.pipelineDepth, e.cfg.logger), nil
}
