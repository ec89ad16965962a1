package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter
	ChainReads        metric.Int64Counter
	ChainReadDuration metric.Float64Histogram
	Writes            metric.Int64Counter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"ms_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"ms_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"ms_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"ms_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"ms_stream_connections",
		metric.WithDescription("Number of active WebSocket and SSE connections"),
	)
	if err != nil {
		return nil, err
	}

	m.ChainReads, err = meter.Int64Counter(
		"ms_chain_batch_reads_total",
		metric.WithDescription("Batched contract reads by result"),
	)
	if err != nil {
		return nil, err
	}

	m.ChainReadDuration, err = meter.Float64Histogram(
		"ms_chain_batch_read_seconds",
		metric.WithDescription("Batched contract read round trip in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.Writes, err = meter.Int64Counter(
		"ms_contract_writes_total",
		metric.WithDescription("Contract writes by action and lifecycle status"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, -1)
}

// RecordChainRead counts one batched read; calls is the batch size.
func (m *Metrics) RecordChainRead(ctx context.Context, calls int, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	labels := metric.WithAttributes(
		attribute.String("result", result),
		attribute.Int("calls", calls),
	)
	m.ChainReads.Add(ctx, 1, labels)
	m.ChainReadDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordWrite(ctx context.Context, action, status string) {
	m.Writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}
