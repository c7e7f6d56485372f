package merge

import (
	"errors"
	"slices"
	"testing"
)

func drainAll(t *testing.T, m *MergeIterator) []int {
	t.Helper()
	var out []int
	for m.HasNext() {
		v, err := m.GetNext()
		if err != nil {
			t.Fatalf("GetNext failed while HasNext was true: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestMergeIterator_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  []int
		expected []int
	}{
		{
			name:     "disjoint lists",
			a:        []int{1, 8, 15, 16, 35},
			b:        []int{2, 7, 12, 63},
			c:        []int{10, 13, 14, 42},
			expected: []int{1, 2, 7, 8, 10, 12, 13, 14, 15, 16, 35, 42, 63},
		},
		{
			name:     "only last list has data",
			a:        []int{},
			b:        []int{},
			c:        []int{5},
			expected: []int{5},
		},
		{
			name:     "equal heads",
			a:        []int{3},
			b:        []int{3},
			c:        []int{},
			expected: []int{3, 3},
		},
		{
			name:     "nil sources",
			a:        nil,
			b:        []int{-2, 0},
			c:        nil,
			expected: []int{-2, 0},
		},
		{
			name:     "overlapping with duplicates",
			a:        []int{1, 1, 4, 9},
			b:        []int{1, 5, 9},
			c:        []int{0, 9, 10},
			expected: []int{0, 1, 1, 1, 4, 5, 9, 9, 9, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewThreeWay(tt.a, tt.b, tt.c)
			got := drainAll(t, m)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if m.HasNext() {
				t.Error("Expected HasNext to be false after draining")
			}
		})
	}
}

func TestMergeIterator_Exhaustion(t *testing.T) {
	m := NewThreeWay([]int{1}, nil, []int{2})

	drainAll(t, m)

	for i := 0; i < 3; i++ {
		if m.HasNext() {
			t.Fatal("HasNext should stay false once exhausted")
		}
		v, err := m.GetNext()
		if !errors.Is(err, ErrExhaustedIterator) {
			t.Fatalf("Expected ErrExhaustedIterator, got %v", err)
		}
		if v != 0 {
			t.Errorf("Expected zero value on error, got %d", v)
		}
	}
}

func TestMergeIterator_AllEmpty(t *testing.T) {
	m := NewThreeWay(nil, []int{}, nil)

	if m.HasNext() {
		t.Error("Expected HasNext to be false for empty sources")
	}
	if _, err := m.GetNext(); !errors.Is(err, ErrExhaustedIterator) {
		t.Errorf("Expected ErrExhaustedIterator, got %v", err)
	}
	if got := Drain(m); len(got) != 0 {
		t.Errorf("Expected empty output, got %v", got)
	}
}

func TestMergeIterator_TieBreakLowestIndex(t *testing.T) {
	// Distinct backing arrays let us see which source each 5 came from
	a := []int{5, 6}
	b := []int{5}
	c := []int{5, 7}
	m := NewThreeWay(a, b, c)

	for want := 0; want < 3; want++ {
		before := slices.Clone(m.cursors)
		v, err := m.GetNext()
		if err != nil {
			t.Fatalf("GetNext failed: %v", err)
		}
		if v != 5 {
			t.Fatalf("Expected 5, got %d", v)
		}
		for i := range before {
			advanced := m.cursors[i] - before[i]
			if i == want && advanced != 1 {
				t.Errorf("Step %d: expected source %d to advance", want, i)
			}
			if i != want && advanced != 0 {
				t.Errorf("Step %d: source %d advanced unexpectedly", want, i)
			}
		}
	}
}

func TestMergeIterator_AdvancesOneCursor(t *testing.T) {
	m := NewThreeWay([]int{1, 4}, []int{2, 5}, []int{3, 6})

	remaining := m.Remaining()
	for m.HasNext() {
		before := slices.Clone(m.cursors)
		if _, err := m.GetNext(); err != nil {
			t.Fatal(err)
		}
		moved := 0
		for i := range before {
			moved += m.cursors[i] - before[i]
		}
		if moved != 1 {
			t.Fatalf("Expected exactly one cursor to move, %d moved", moved)
		}
		remaining--
		if m.Remaining() != remaining {
			t.Fatalf("Expected %d remaining, got %d", remaining, m.Remaining())
		}
	}
}

func TestMergeIterator_DoesNotCopySources(t *testing.T) {
	a := []int{1, 3}
	m := NewThreeWay(a, []int{2}, nil)

	if &m.sources[0][0] != &a[0] {
		t.Error("Expected the iterator to borrow the caller's slice")
	}
}

func TestNew_GeneralArity(t *testing.T) {
	sources := [][]int{
		{4, 20},
		{1},
		{},
		{3, 3, 21},
		{2, 19},
	}
	m, err := New(sources)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.NumSources() != 5 {
		t.Errorf("Expected 5 sources, got %d", m.NumSources())
	}

	got := drainAll(t, m)
	expected := []int{1, 2, 3, 3, 4, 19, 20, 21}
	if !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestNew_SingleSource(t *testing.T) {
	m, err := New([][]int{{1, 2, 3}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := drainAll(t, m); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("Unexpected output %v", got)
	}
}

func TestNew_InvalidArgument(t *testing.T) {
	tests := []struct {
		name    string
		sources [][]int
		opts    []Option
	}{
		{"no sources", nil, nil},
		{"empty source list", [][]int{}, nil},
		{"too few for arity", [][]int{{1}, {2}}, []Option{WithArity(3)}},
		{"too many for arity", [][]int{{1}, {2}, {3}, {4}}, []Option{WithArity(DefaultArity)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.sources, tt.opts...)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
			if m != nil {
				t.Error("Expected nil iterator on error")
			}
		})
	}
}

func TestNew_OrderCheck(t *testing.T) {
	_, err := New([][]int{{1, 2}, {5, 4}, {}}, WithOrderCheck())
	if !errors.Is(err, ErrUnsortedSource) {
		t.Fatalf("Expected ErrUnsortedSource, got %v", err)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrUnsortedSource to match ErrInvalidArgument")
	}

	// Non-decreasing runs pass
	if _, err := New([][]int{{1, 1, 2}, {4, 4}}, WithOrderCheck()); err != nil {
		t.Errorf("Unexpected error for sorted sources: %v", err)
	}

	// Without the check, construction does not inspect the data
	if _, err := New([][]int{{5, 4}}); err != nil {
		t.Errorf("Unexpected error without order check: %v", err)
	}
}

func TestNewThreeWay_PanicsOnOrderCheckFailure(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnsortedSource) {
			t.Errorf("Expected panic with ErrUnsortedSource, got %v", r)
		}
	}()
	NewThreeWay([]int{2, 1}, nil, nil, WithOrderCheck())
}

func TestMergeIterator_All(t *testing.T) {
	m := NewThreeWay([]int{1, 8}, []int{2, 7}, []int{10})

	var got []int
	for v := range m.All() {
		got = append(got, v)
		if v == 7 {
			break
		}
	}
	if !slices.Equal(got, []int{1, 2, 7}) {
		t.Errorf("Expected [1 2 7], got %v", got)
	}

	// Breaking out leaves the rest available
	rest := slices.Collect(m.All())
	if !slices.Equal(rest, []int{8, 10}) {
		t.Errorf("Expected [8 10], got %v", rest)
	}
}

func TestNewThreeWay_DoesNotWriteCallerOptions(t *testing.T) {
	opts := make([]Option, 1, 2)
	opts[0] = WithMetrics(NewNoopMergeMetrics())

	m := NewThreeWay([]int{1}, nil, nil, opts...)
	if m.arity != DefaultArity {
		t.Errorf("Expected arity %d, got %d", DefaultArity, m.arity)
	}

	// The spare slot past len(opts) must be untouched
	if spare := opts[:2]; spare[1] != nil {
		t.Error("NewThreeWay wrote into the caller's option slice")
	}
}

func TestMergeIterator_TimingOnlyWithRecorder(t *testing.T) {
	if m := NewThreeWay([]int{1}, nil, nil); m.timed {
		t.Error("Expected no timing with the no-op recorder")
	}

	server := newMockTelemetryServer()
	m := NewThreeWay([]int{1}, nil, nil, WithMetrics(NewMergeMetrics(server)))
	if !m.timed {
		t.Fatal("Expected timing with a real recorder")
	}
	if _, err := m.GetNext(); err != nil {
		t.Fatal(err)
	}
	if vals := server.histogramValues("kmerge.merge.next.duration"); len(vals) != 1 {
		t.Errorf("Expected 1 next duration, got %v", vals)
	}
}
