// Package source loads the sorted integer sequences fed to the merge iterator.
//
// A sequence file holds integers separated by whitespace or commas. Text from
// '#' to the end of a line is ignored. Files may be zstd or snappy compressed.
package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrParse is returned when a sequence file contains something other than integers
var ErrParse = errors.New("invalid sequence data")

// Sequence is one named input to a merge
type Sequence struct {
	Name   string
	Values []int
	// Digest is the xxhash64 of Values, see Digest
	Digest uint64
}

// Sorted reports whether the values are in non-decreasing order
func (s Sequence) Sorted() bool {
	return slices.IsSorted(s.Values)
}

// NewSequence builds a sequence from in-memory values
func NewSequence(name string, values []int) Sequence {
	return Sequence{
		Name:   name,
		Values: values,
		Digest: Digest(values),
	}
}

// Parse reads integers from r. Lines may be of any length.
func Parse(r io.Reader) ([]int, error) {
	values := make([]int, 0, 64)
	br := bufio.NewReader(r)
	lineNo := 0

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("failed to read sequence: %w", readErr)
		}
		if len(line) == 0 && readErr == io.EOF {
			break
		}

		lineNo++
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
		})
		for _, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not an integer", ErrParse, lineNo, f)
			}
			values = append(values, v)
		}

		if readErr == io.EOF {
			break
		}
	}

	return values, nil
}

// LoadFile reads a sequence file, decompressing it according to its extension
func LoadFile(path string) (Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sequence{}, fmt.Errorf("failed to open sequence file: %w", err)
	}
	defer f.Close()

	rc, err := NewDecompressReader(f, CodecForPath(path))
	if err != nil {
		return Sequence{}, fmt.Errorf("%s: %w", path, err)
	}
	defer rc.Close()

	values, err := Parse(rc)
	if err != nil {
		return Sequence{}, fmt.Errorf("%s: %w", path, err)
	}

	return NewSequence(filepath.Base(path), values), nil
}

// WriteFile writes values to path, one per line, compressed according to the extension
func WriteFile(path string, values []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sequence file: %w", err)
	}

	wc, err := NewCompressWriter(f, CodecForPath(path))
	if err != nil {
		f.Close()
		return err
	}

	bw := bufio.NewWriter(wc)
	for _, v := range values {
		bw.WriteString(strconv.Itoa(v))
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		wc.Close()
		f.Close()
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	if err := wc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	return f.Close()
}

// Digest returns the xxhash64 of values encoded as little-endian int64s.
// Equal multisets in equal order hash equal regardless of where they came from.
func Digest(values []int) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	return h.Sum64()
}
