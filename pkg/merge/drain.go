package merge

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"time"
)

// Drain consumes every remaining element of the iterator and returns them in order
func Drain(m *MergeIterator) []int {
	start := time.Now()
	out := make([]int, 0, m.Remaining())
	for m.HasNext() {
		v, err := m.GetNext()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	m.metrics.RecordDrain(context.Background(), time.Since(start), len(out))
	return out
}

// WriteSequence drains the iterator to w as space separated values followed by a newline.
// It returns the number of elements written.
func WriteSequence(w io.Writer, m *MergeIterator) (int, error) {
	start := time.Now()
	bw := bufio.NewWriter(w)

	n := 0
	var buf []byte
	for m.HasNext() {
		v, err := m.GetNext()
		if err != nil {
			return n, err
		}

		buf = buf[:0]
		if n > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(v), 10)
		if _, err := bw.Write(buf); err != nil {
			return n, err
		}
		n++
	}

	if err := bw.WriteByte('\n'); err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}

	m.metrics.RecordDrain(context.Background(), time.Since(start), n)
	return n, nil
}
