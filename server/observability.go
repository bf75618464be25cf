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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/veloxhq/velox/web"
)

// observability carries the server's meter, tracer and the optional
// Prometheus endpoint. Without a metrics endpoint the global providers
// apply, which default to no-ops.
type observability struct {
	provider *sdkmetric.MeterProvider // nil without a metrics endpoint
	registry *prometheus.Registry
	tracer   trace.Tracer

	exchanges metric.Int64Counter
	failures  metric.Int64Counter
}

func newObservability(cfg serverConfig) (*observability, error) {
	o := &observability{
		tracer: otel.GetTracerProvider().Tracer("velox/server"),
	}

	meterProvider := otel.GetMeterProvider()
	if cfg.metricsPath != "" {
		o.registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(o.registry))
		if err != nil {
			return nil, err
		}
		o.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		meterProvider = o.provider
	}

	meter := meterProvider.Meter("velox/server")
	var err error
	if o.exchanges, err = meter.Int64Counter("velox.server.exchanges",
		metric.WithDescription("Completed exchanges by method, status and state")); err != nil {
		return nil, err
	}
	if o.failures, err = meter.Int64Counter("velox.server.failures",
		metric.WithDescription("Exchanges terminated without a complete response")); err != nil {
		return nil, err
	}
	return o, nil
}

// wrap serves the Prometheus endpoint at path and delegates everything
// else.
func (o *observability) wrap(path string, next http.Handler) http.Handler {
	metricsHandler := promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// record counts one finished exchange.
func (o *observability) record(r *http.Request, ex *web.Exchange, state web.State) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", r.Method),
		attribute.Int("http.response.status_code", ex.Response().Status()),
		attribute.String("velox.exchange.state", state.String()),
	)
	o.exchanges.Add(context.Background(), 1, attrs)
	if state == web.StateFailed {
		o.failures.Add(context.Background(), 1, attrs)
	}
}

func (o *observability) shutdown(ctx context.Context) {
	if o.provider != nil {
		_ = o.provider.Shutdown(ctx)
	}
}
