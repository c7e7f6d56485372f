package stats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/kmerge/pkg/merge"
)

// OperationType defines the type of operation being tracked
type OperationType string

// Merge operation types
const (
	OpConstruct OperationType = "construct"
	OpNext      OperationType = "next"
	OpDrain     OperationType = "drain"
	OpExhausted OperationType = "exhausted"
)

// AtomicCollector keeps merge statistics in memory using atomic counters.
// Every call is forwarded to the wrapped MergeMetrics, so it can sit in
// front of the telemetry-backed implementation.
type AtomicCollector struct {
	next merge.MergeMetrics

	counts   map[OperationType]*atomic.Uint64
	countsMu sync.RWMutex // Only used when creating new counter entries

	// Selections per source index
	selections   map[int]*atomic.Uint64
	selectionsMu sync.RWMutex

	sources  atomic.Int64
	elements atomic.Int64
	drained  atomic.Int64

	nextLatency LatencyTracker
}

// LatencyTracker maintains running statistics about operation latencies
type LatencyTracker struct {
	count atomic.Uint64
	sum   atomic.Uint64 // sum in nanoseconds
	max   atomic.Uint64 // max in nanoseconds
	min   atomic.Uint64 // min in nanoseconds, 0 until the first sample
}

// NewAtomicCollector creates a collector that forwards to next.
// A nil next forwards to a no-op implementation.
func NewAtomicCollector(next merge.MergeMetrics) *AtomicCollector {
	if next == nil {
		next = merge.NewNoopMergeMetrics()
	}
	return &AtomicCollector{
		next:       next,
		counts:     make(map[OperationType]*atomic.Uint64),
		selections: make(map[int]*atomic.Uint64),
	}
}

// RecordConstruct tracks iterator construction
func (c *AtomicCollector) RecordConstruct(ctx context.Context, sourceCount, elements int) {
	c.getOrCreateCounter(OpConstruct).Add(1)
	c.sources.Store(int64(sourceCount))
	c.elements.Store(int64(elements))
	c.next.RecordConstruct(ctx, sourceCount, elements)
}

// RecordNext tracks one emitted element and the source it came from
func (c *AtomicCollector) RecordNext(ctx context.Context, duration time.Duration, source int) {
	c.getOrCreateCounter(OpNext).Add(1)
	c.getOrCreateSelection(source).Add(1)
	c.nextLatency.observe(uint64(duration.Nanoseconds()))
	c.next.RecordNext(ctx, duration, source)
}

// RecordExhaustedCall tracks a GetNext call made after exhaustion
func (c *AtomicCollector) RecordExhaustedCall(ctx context.Context) {
	c.getOrCreateCounter(OpExhausted).Add(1)
	c.next.RecordExhaustedCall(ctx)
}

// RecordDrain tracks a drain of the remaining elements
func (c *AtomicCollector) RecordDrain(ctx context.Context, duration time.Duration, count int) {
	c.getOrCreateCounter(OpDrain).Add(1)
	c.drained.Add(int64(count))
	c.next.RecordDrain(ctx, duration, count)
}

// Close closes the wrapped metrics
func (c *AtomicCollector) Close() error {
	return c.next.Close()
}

// Selections returns how many elements each source has contributed so far
func (c *AtomicCollector) Selections() []uint64 {
	out := make([]uint64, c.sources.Load())
	c.selectionsMu.RLock()
	defer c.selectionsMu.RUnlock()
	for i, counter := range c.selections {
		if i >= 0 && i < len(out) {
			out[i] = counter.Load()
		}
	}
	return out
}

// GetStats returns all statistics as a map
func (c *AtomicCollector) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	c.countsMu.RLock()
	for op, counter := range c.counts {
		stats[string(op)+"_ops"] = counter.Load()
	}
	c.countsMu.RUnlock()

	stats["sources"] = c.sources.Load()
	stats["elements"] = c.elements.Load()
	stats["drained_elements"] = c.drained.Load()

	for i, n := range c.Selections() {
		stats[fmt.Sprintf("source_%d_selected", i)] = n
	}

	if count := c.nextLatency.count.Load(); count > 0 {
		stats["next_latency"] = map[string]interface{}{
			"count":  count,
			"avg_ns": c.nextLatency.sum.Load() / count,
			"min_ns": c.nextLatency.min.Load(),
			"max_ns": c.nextLatency.max.Load(),
		}
	}

	return stats
}

// GetStatsFiltered returns statistics filtered by prefix
func (c *AtomicCollector) GetStatsFiltered(prefix string) map[string]interface{} {
	filtered := make(map[string]interface{})
	for key, value := range c.GetStats() {
		if strings.HasPrefix(key, prefix) {
			filtered[key] = value
		}
	}
	return filtered
}

// observe folds one latency sample into the tracker
func (t *LatencyTracker) observe(latencyNs uint64) {
	t.count.Add(1)
	t.sum.Add(latencyNs)

	for {
		current := t.max.Load()
		if latencyNs <= current || t.max.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	for {
		current := t.min.Load()
		if current != 0 && latencyNs >= current {
			break
		}
		if t.min.CompareAndSwap(current, latencyNs) {
			break
		}
	}
}

// getOrCreateCounter gets or creates an atomic counter for the operation
func (c *AtomicCollector) getOrCreateCounter(op OperationType) *atomic.Uint64 {
	c.countsMu.RLock()
	counter, exists := c.counts[op]
	c.countsMu.RUnlock()

	if !exists {
		c.countsMu.Lock()
		if counter, exists = c.counts[op]; !exists {
			counter = &atomic.Uint64{}
			c.counts[op] = counter
		}
		c.countsMu.Unlock()
	}

	return counter
}

func (c *AtomicCollector) getOrCreateSelection(source int) *atomic.Uint64 {
	c.selectionsMu.RLock()
	counter, exists := c.selections[source]
	c.selectionsMu.RUnlock()

	if !exists {
		c.selectionsMu.Lock()
		if counter, exists = c.selections[source]; !exists {
			counter = &atomic.Uint64{}
			c.selections[source] = counter
		}
		c.selectionsMu.Unlock()
	}

	return counter
}
