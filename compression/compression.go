// Package compression implements the compression schemes found inside the
// game containers.
package compression

import (
	"bytes"
	"errors"
	"io"
)

var (
	// ErrCorruptCompressionHeader is returned when a compression header is
	// inconsistent with the data following it.
	ErrCorruptCompressionHeader = errors.New("corrupt compression header")

	// ErrCorruptStream is returned when the compressed token stream itself is
	// invalid (e.g., a back-reference before the start of the output).
	ErrCorruptStream = errors.New("corrupt compressed stream")
)

// Codec compresses and decompresses whole blocks.
type Codec interface {
	// Decompress reads a compressed block from r and returns the original
	// bytes.
	Decompress(r io.Reader) ([]byte, error)

	// Compress returns a reader producing data which decompresses back to b.
	Compress(b []byte) (io.Reader, error)
}

var (
	_ Codec = HeaderSPC{}
	_ Codec = CRILAYLA{}
	_ Codec = LZHAM{}
)

func readAll(r io.Reader) ([]byte, error) {
	if b, ok := r.(*bytes.Reader); ok && b.Size() == int64(b.Len()) {
		buf := make([]byte, b.Len())
		_, err := io.ReadFull(b, buf)
		return buf, err
	}
	return io.ReadAll(r)
}
