// ABOUTME: OpenTelemetry exporter factory for metric readers and span exporters (stdout, OTLP, Prometheus)
// ABOUTME: Stdout exporters write to the configured diagnostic writer so merge output stays clean

package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createMetricReaders creates metric readers based on configuration.
// The returned registry is non-nil only when the prometheus exporter is configured.
func createMetricReaders(cfg Config, w io.Writer) ([]sdkmetric.Reader, *prometheus.Registry, error) {
	var readers []sdkmetric.Reader
	var registry *prometheus.Registry

	for _, exporterName := range cfg.Exporters {
		switch exporterName {
		case ExporterStdout:
			exporter, err := stdoutmetric.New(
				stdoutmetric.WithWriter(w),
				stdoutmetric.WithPrettyPrint(),
			)
			if err != nil {
				_ = shutdownReaders(context.Background(), readers)
				return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(cfg.MetricInterval),
				sdkmetric.WithTimeout(cfg.ExportTimeout),
			))

		case ExporterPrometheus:
			registry = prometheus.NewRegistry()
			reader, err := otelprom.New(otelprom.WithRegisterer(registry))
			if err != nil {
				_ = shutdownReaders(context.Background(), readers)
				return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
			}
			readers = append(readers, reader)

		default:
			// otlp carries traces only in this setup
			continue
		}
	}

	return readers, registry, nil
}

// createSpanExporters creates trace exporters based on configuration.
func createSpanExporters(cfg Config, w io.Writer) ([]sdktrace.SpanExporter, error) {
	var exporters []sdktrace.SpanExporter

	for _, exporterName := range cfg.Exporters {
		switch exporterName {
		case ExporterOTLP:
			exporter, err := otlptracegrpc.New(
				context.Background(),
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithTimeout(cfg.ExportTimeout),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)

		case ExporterStdout:
			exporter, err := stdouttrace.New(
				stdouttrace.WithWriter(w),
				stdouttrace.WithPrettyPrint(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)

		default:
			// prometheus doesn't carry traces
			continue
		}
	}

	return exporters, nil
}
