// ABOUTME: Merge iterator telemetry metrics interface and OpenTelemetry-backed implementation
// ABOUTME: Tracks construction size, per-element selection, drains and calls made past exhaustion

package merge

import (
	"context"
	"time"

	"github.com/KevoDB/kmerge/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MergeMetrics defines the interface for merge iterator telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type MergeMetrics interface {
	telemetry.ComponentMetrics

	// RecordConstruct records the shape of a newly constructed iterator.
	RecordConstruct(ctx context.Context, sourceCount int, elements int)

	// RecordNext records one successful GetNext and the source it consumed.
	RecordNext(ctx context.Context, duration time.Duration, source int)

	// RecordExhaustedCall records a GetNext made after the iterator was exhausted.
	RecordExhaustedCall(ctx context.Context)

	// RecordDrain records a full drain of the iterator.
	RecordDrain(ctx context.Context, duration time.Duration, count int)
}

// mergeMetrics implements MergeMetrics using the telemetry interface.
type mergeMetrics struct {
	tel telemetry.Telemetry
}

// NewMergeMetrics creates a new merge metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewMergeMetrics(tel telemetry.Telemetry) MergeMetrics {
	if tel == nil {
		return &noopMergeMetrics{}
	}
	return &mergeMetrics{tel: tel}
}

// NewNoopMergeMetrics creates a no-op merge metrics implementation.
func NewNoopMergeMetrics() MergeMetrics {
	return &noopMergeMetrics{}
}

// RecordConstruct records iterator construction metrics.
func (m *mergeMetrics) RecordConstruct(ctx context.Context, sourceCount int, elements int) {
	m.tel.RecordCounter(ctx, "kmerge.merge.iterators.created", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
		attribute.Int("source_count", sourceCount),
	)

	m.tel.RecordHistogram(ctx, "kmerge.merge.source_elements", float64(elements),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
	)
}

// RecordNext records GetNext metrics.
func (m *mergeMetrics) RecordNext(ctx context.Context, duration time.Duration, source int) {
	m.tel.RecordHistogram(ctx, "kmerge.merge.next.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeNext),
	)

	// Per-source selection counts show how evenly the inputs interleave
	m.tel.RecordCounter(ctx, "kmerge.merge.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeNext),
		attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess),
		attribute.Int(telemetry.AttrSource, source),
	)
}

// RecordExhaustedCall records a contract violation.
func (m *mergeMetrics) RecordExhaustedCall(ctx context.Context) {
	m.tel.RecordCounter(ctx, "kmerge.merge.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeNext),
		attribute.String(telemetry.AttrStatus, telemetry.StatusExhausted),
	)
}

// RecordDrain records drain metrics.
func (m *mergeMetrics) RecordDrain(ctx context.Context, duration time.Duration, count int) {
	m.tel.RecordHistogram(ctx, "kmerge.merge.drain.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeDrain),
	)

	m.tel.RecordHistogram(ctx, "kmerge.merge.drain.elements", float64(count),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMerge),
	)
}

// Close implements ComponentMetrics interface.
func (m *mergeMetrics) Close() error {
	return nil
}

// noopMergeMetrics provides a no-op implementation for testing and disabled telemetry.
type noopMergeMetrics struct{}

func (n *noopMergeMetrics) RecordConstruct(ctx context.Context, sourceCount int, elements int) {}

func (n *noopMergeMetrics) RecordNext(ctx context.Context, duration time.Duration, source int) {}

func (n *noopMergeMetrics) RecordExhaustedCall(ctx context.Context) {}

func (n *noopMergeMetrics) RecordDrain(ctx context.Context, duration time.Duration, count int) {}

func (n *noopMergeMetrics) Close() error { return nil }
