package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pg9182/tf2lzham"
)

// DefaultLZHAMBuffer is the work buffer size used when LZHAM.Buffer is zero.
const DefaultLZHAMBuffer = 5 * 1024 * 1024

// LZHAM is raw LZHAM (as used by Respawn's tooling). The stream has no size
// header, so the output must fit within Buffer bytes.
type LZHAM struct {
	Buffer int
}

func (c LZHAM) buffer(n int) []byte {
	sz := c.Buffer
	if sz <= 0 {
		sz = DefaultLZHAMBuffer
	}
	return make([]byte, max(sz, n))
}

// Decompress implements Codec.
func (c LZHAM) Decompress(r io.Reader) ([]byte, error) {
	src, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read compressed data: %w", err)
	}
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: input is empty", ErrCorruptCompressionHeader)
	}
	dst := c.buffer(0)
	n, _, _, err := tf2lzham.Decompress(dst, src)
	if err != nil {
		return nil, fmt.Errorf("%w: lzham: %w", ErrCorruptStream, err)
	}
	return dst[:n], nil
}

// Compress implements Codec.
func (c LZHAM) Compress(b []byte) (io.Reader, error) {
	dst := c.buffer(len(b) + len(b)/2 + 1024)
	n, _, _, err := tf2lzham.Compress(dst, b)
	if err != nil {
		return nil, fmt.Errorf("lzham: %w", err)
	}
	return bytes.NewReader(dst[:n]), nil
}
