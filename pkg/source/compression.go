package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnknownCodec is returned when an unsupported compression codec is specified
	ErrUnknownCodec = errors.New("unknown compression codec")

	// ErrInvalidCompressedData is returned when compressed data cannot be decompressed
	ErrInvalidCompressedData = errors.New("invalid compressed data")
)

// Codec identifies how a sequence file is compressed
type Codec int

const (
	CodecNone Codec = iota
	CodecZstd
	CodecSnappy
)

// String returns the codec name
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// CodecForPath picks a codec from the file extension: .zst is zstd, .sz is
// snappy framed format, anything else is read as plain text.
func CodecForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CodecZstd
	case ".sz", ".snappy":
		return CodecSnappy
	default:
		return CodecNone
	}
}

// NewDecompressReader returns a reader that decompresses r using the specified codec
func NewDecompressReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil

	case CodecZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
		}
		return &zstdReadCloser{decoder}, nil

	case CodecSnappy:
		return io.NopCloser(&corruptionReader{r: snappy.NewReader(r)}), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

// NewCompressWriter returns a writer that compresses into w using the specified codec
func NewCompressWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil

	case CodecZstd:
		return zstd.NewWriter(w)

	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// corruptionReader marks decoder failures with ErrInvalidCompressedData
type corruptionReader struct {
	r io.Reader
}

func (c *corruptionReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrInvalidCompressedData, err)
	}
	return n, err
}

// zstdReadCloser adapts zstd.Decoder, whose Close returns nothing
type zstdReadCloser struct {
	decoder *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return (&corruptionReader{r: z.decoder}).Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.decoder.Close()
	return nil
}
