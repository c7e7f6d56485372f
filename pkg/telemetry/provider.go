// ABOUTME: OpenTelemetry provider implementation with metric and trace provider setup for kmerge telemetry
// ABOUTME: Handles provider lifecycle, resource identity, sampling and the optional Prometheus scrape endpoint

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/KevoDB/kmerge"

// TelemetryProvider implements the Telemetry interface using the OpenTelemetry SDK.
type TelemetryProvider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer
	resource       *sdkresource.Resource
	metricsServer  *http.Server

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New creates a new TelemetryProvider with the given configuration.
// Stdout exporters write to os.Stderr.
func New(cfg Config) (Telemetry, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a TelemetryProvider whose stdout exporters write to w.
// A disabled configuration yields a no-op implementation.
func NewWithWriter(cfg Config, w io.Writer) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("service.instance.id", uuid.NewString()),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	readers, registry, err := createMetricReaders(cfg, w)
	if err != nil {
		return nil, err
	}
	spanExporters, err := createSpanExporters(cfg, w)
	if err != nil {
		_ = shutdownReaders(context.Background(), readers)
		return nil, err
	}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(r))
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	for _, exp := range spanExporters {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		))
	}

	p := &TelemetryProvider{
		config:         cfg,
		meterProvider:  sdkmetric.NewMeterProvider(meterOpts...),
		tracerProvider: sdktrace.NewTracerProvider(traceOpts...),
		resource:       res,
		counters:       make(map[string]metric.Int64Counter),
		histograms:     make(map[string]metric.Float64Histogram),
	}
	p.meter = p.meterProvider.Meter(instrumentationName)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	if registry != nil {
		if err := p.serveMetrics(registry); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, err
		}
	}

	return p, nil
}

// shutdownReaders releases readers that never made it into a meter provider
func shutdownReaders(ctx context.Context, readers []sdkmetric.Reader) error {
	var errs []error
	for _, r := range readers {
		if err := r.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serveMetrics exposes the Prometheus registry on /metrics.
func (p *TelemetryProvider) serveMetrics(registry prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.config.PrometheusPort))
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	p.metricsServer = &http.Server{Handler: mux}

	go func() {
		_ = p.metricsServer.Serve(ln)
	}()
	return nil
}

// RecordHistogram records a value on the named histogram, creating it on first use.
func (p *TelemetryProvider) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		var err error
		h, err = p.meter.Float64Histogram(name)
		if err != nil {
			p.mu.Unlock()
			return
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()

	h.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordCounter adds value to the named counter, creating it on first use.
func (p *TelemetryProvider) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		var err error
		c, err = p.meter.Int64Counter(name)
		if err != nil {
			p.mu.Unlock()
			return
		}
		p.counters[name] = c
	}
	p.mu.Unlock()

	c.Add(ctx, value, metric.WithAttributes(attrs...))
}

// StartSpan starts a span on the provider's tracer.
func (p *TelemetryProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return p.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans and metrics and stops the metrics endpoint.
func (p *TelemetryProvider) Shutdown(ctx context.Context) error {
	var errs []error

	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	if p.metricsServer != nil {
		if err := p.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	return errors.Join(errs...)
}
