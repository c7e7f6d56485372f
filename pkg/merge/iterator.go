// Package merge provides a lazy k-way merge over pre-sorted integer sequences.
package merge

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"
)

// DefaultArity is the number of sources merged by NewThreeWay
const DefaultArity = 3

// MergeIterator yields the elements of several individually sorted sequences
// in global non-decreasing order, one element per GetNext call.
//
// The iterator borrows its sources: the slices are never copied, must outlive
// the iterator and must not be modified while it is in use.
//
// A MergeIterator is not safe for concurrent use. Callers that share one
// instance between goroutines must provide their own locking.
type MergeIterator struct {
	// Sources in tie-break order, lowest index wins on equal values
	sources [][]int

	// Current position in each source
	cursors []int

	// One past the last element of each source
	ends []int

	metrics    MergeMetrics
	arity      int
	checkOrder bool

	// timed is false while the no-op recorder is installed
	timed bool
}

// Option configures a MergeIterator
type Option func(*MergeIterator)

// WithArity requires exactly n sources at construction
func WithArity(n int) Option {
	return func(m *MergeIterator) {
		m.arity = n
	}
}

// WithOrderCheck verifies at construction that every source is non-decreasing
func WithOrderCheck() Option {
	return func(m *MergeIterator) {
		m.checkOrder = true
	}
}

// WithMetrics sets the metrics recorder used by the iterator
func WithMetrics(metrics MergeMetrics) Option {
	return func(m *MergeIterator) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// New creates a merge iterator over the given sources.
// Sources must each be sorted in non-decreasing order.
func New(sources [][]int, opts ...Option) (*MergeIterator, error) {
	m := &MergeIterator{
		metrics: NewNoopMergeMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: at least one source is required", ErrInvalidArgument)
	}
	if m.arity > 0 && len(sources) != m.arity {
		return nil, fmt.Errorf("%w: expected %d sources, got %d", ErrInvalidArgument, m.arity, len(sources))
	}

	m.sources = sources
	m.cursors = make([]int, len(sources))
	m.ends = make([]int, len(sources))

	total := 0
	for i, src := range sources {
		if m.checkOrder && !slices.IsSorted(src) {
			return nil, fmt.Errorf("%w: source %d", ErrUnsortedSource, i)
		}
		m.ends[i] = len(src)
		total += len(src)
	}

	_, noop := m.metrics.(*noopMergeMetrics)
	m.timed = !noop

	m.metrics.RecordConstruct(context.Background(), len(sources), total)
	return m, nil
}

// NewThreeWay creates a merge iterator over exactly three sources.
// It panics only if WithOrderCheck is given and a source is unsorted.
func NewThreeWay(a, b, c []int, opts ...Option) *MergeIterator {
	m, err := New([][]int{a, b, c}, append(slices.Clip(opts), WithArity(DefaultArity))...)
	if err != nil {
		panic(err)
	}
	return m
}

// HasNext returns true if at least one source has elements remaining
func (m *MergeIterator) HasNext() bool {
	for i := range m.cursors {
		if m.cursors[i] != m.ends[i] {
			return true
		}
	}
	return false
}

// GetNext returns the smallest remaining element and advances past it.
// When several sources hold the same smallest value, the one with the lowest
// index is consumed first. Returns ErrExhaustedIterator if HasNext is false.
func (m *MergeIterator) GetNext() (int, error) {
	var start time.Time
	if m.timed {
		start = time.Now()
	}

	minIdx := -1
	var minVal int
	for i := range m.cursors {
		if m.cursors[i] == m.ends[i] {
			continue
		}
		if v := m.sources[i][m.cursors[i]]; minIdx == -1 || v < minVal {
			minIdx = i
			minVal = v
		}
	}

	if minIdx == -1 {
		m.metrics.RecordExhaustedCall(context.Background())
		return 0, ErrExhaustedIterator
	}

	m.cursors[minIdx]++
	var elapsed time.Duration
	if m.timed {
		elapsed = time.Since(start)
	}
	m.metrics.RecordNext(context.Background(), elapsed, minIdx)
	return minVal, nil
}

// NumSources returns the number of sources being merged
func (m *MergeIterator) NumSources() int {
	return len(m.sources)
}

// Remaining returns the number of elements not yet returned
func (m *MergeIterator) Remaining() int {
	n := 0
	for i := range m.cursors {
		n += m.ends[i] - m.cursors[i]
	}
	return n
}

// All returns a sequence that drains the iterator.
// Stopping the range early leaves the remaining elements in place.
func (m *MergeIterator) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for m.HasNext() {
			v, err := m.GetNext()
			if err != nil || !yield(v) {
				return
			}
		}
	}
}
