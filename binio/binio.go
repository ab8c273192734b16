// Package binio reads and writes the fixed-width values used by the
// container and script formats.
//
// All multi-byte values are assembled byte by byte in an explicit order, and
// a short read is always reported as ErrTruncatedInput rather than being
// zero-filled.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
)

var (
	// ErrTruncatedInput is returned when a stream ends before a fixed-width or
	// structural read completed.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrInvalidWidth is returned by the width-parameterized helpers for widths
	// other than 1, 2, 4 or 8.
	ErrInvalidWidth = errors.New("invalid integer width")
)

// ReadFull reads exactly len(b) bytes into b.
func ReadFull(r io.Reader, b []byte) error {
	if n, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: wanted %d bytes, got %d", ErrTruncatedInput, len(b), n)
		}
		return err
	}
	return nil
}

// readChunk is the largest buffer ReadBytes allocates before any of the data
// has arrived.
const readChunk = 1 << 20

// ReadBytes reads exactly n bytes. Lengths over readChunk are read
// incrementally, so a bogus length cannot reserve more memory than the input
// actually holds.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrTruncatedInput, n)
	}
	if n <= readChunk {
		b := make([]byte, n)
		if err := ReadFull(r, b); err != nil {
			return nil, err
		}
		return b, nil
	}
	b := make([]byte, 0, readChunk)
	for len(b) < n {
		k := min(n-len(b), readChunk)
		b = slices.Grow(b, k)
		m, err := io.ReadFull(r, b[len(b):len(b)+k])
		b = b[:len(b)+m]
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: wanted %d bytes, got %d", ErrTruncatedInput, n, len(b))
			}
			return nil, err
		}
	}
	return b, nil
}

func read(r io.Reader, n int) ([]byte, error) {
	var buf [8]byte
	if err := ReadFull(r, buf[:n]); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadUint8 reads a single byte.
func ReadUint8(r io.Reader) (uint8, error) {
	if br, ok := r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: wanted 1 byte, got 0", ErrTruncatedInput)
			}
			return 0, err
		}
		return b, nil
	}
	b, err := read(r, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadUint16LE(r io.Reader) (uint16, error) {
	b, err := read(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func ReadUint16BE(r io.Reader) (uint16, error) {
	b, err := read(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func ReadInt16LE(r io.Reader) (int16, error) {
	v, err := ReadUint16LE(r)
	return int16(v), err
}

func ReadInt16BE(r io.Reader) (int16, error) {
	v, err := ReadUint16BE(r)
	return int16(v), err
}

func ReadUint32LE(r io.Reader) (uint32, error) {
	b, err := read(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadUint32BE(r io.Reader) (uint32, error) {
	b, err := read(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func ReadInt32LE(r io.Reader) (int32, error) {
	v, err := ReadUint32LE(r)
	return int32(v), err
}

func ReadInt32BE(r io.Reader) (int32, error) {
	v, err := ReadUint32BE(r)
	return int32(v), err
}

func ReadUint64LE(r io.Reader) (uint64, error) {
	b, err := read(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadUint64BE(r io.Reader) (uint64, error) {
	b, err := read(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func ReadInt64LE(r io.Reader) (int64, error) {
	v, err := ReadUint64LE(r)
	return int64(v), err
}

func ReadInt64BE(r io.Reader) (int64, error) {
	v, err := ReadUint64BE(r)
	return int64(v), err
}

func ReadFloat32LE(r io.Reader) (float32, error) {
	v, err := ReadUint32LE(r)
	return math.Float32frombits(v), err
}

func ReadFloat32BE(r io.Reader) (float32, error) {
	v, err := ReadUint32BE(r)
	return math.Float32frombits(v), err
}

// ReadIntXLE reads a little-endian unsigned integer of the provided width,
// which must be 1, 2, 4 or 8.
func ReadIntXLE(r io.Reader, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := ReadUint8(r)
		return uint64(v), err
	case 2:
		v, err := ReadUint16LE(r)
		return uint64(v), err
	case 4:
		v, err := ReadUint32LE(r)
		return uint64(v), err
	case 8:
		return ReadUint64LE(r)
	default:
		return 0, fmt.Errorf("%w: %d is not 1, 2, 4, or 8", ErrInvalidWidth, width)
	}
}

// ReadIntXBE is like ReadIntXLE, but big-endian.
func ReadIntXBE(r io.Reader, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := ReadUint8(r)
		return uint64(v), err
	case 2:
		v, err := ReadUint16BE(r)
		return uint64(v), err
	case 4:
		v, err := ReadUint32BE(r)
		return uint64(v), err
	case 8:
		return ReadUint64BE(r)
	default:
		return 0, fmt.Errorf("%w: %d is not 1, 2, 4, or 8", ErrInvalidWidth, width)
	}
}

// ReadNullString reads bytes up to (and consuming) a NUL terminator.
func ReadNullString(r io.Reader) (string, error) {
	var s []byte
	for {
		b, err := ReadUint8(r)
		if err != nil {
			return string(s), err
		}
		if b == 0 {
			break
		}
		s = append(s, b)
	}
	return string(s), nil
}

// Skip discards n bytes, seeking if possible.
func Skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		cur, err := s.Seek(0, io.SeekCurrent)
		if err == nil {
			end, err := s.Seek(0, io.SeekEnd)
			if err != nil {
				return err
			}
			if end-cur < n {
				return fmt.Errorf("%w: wanted to skip %d bytes, only %d left", ErrTruncatedInput, n, end-cur)
			}
			_, err = s.Seek(cur+n, io.SeekStart)
			return err
		}
	}
	if c, err := io.CopyN(io.Discard, r, n); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: wanted to skip %d bytes, only %d left", ErrTruncatedInput, n, c)
		}
		return err
	}
	return nil
}

// Align rounds n up to a multiple of a (which must be positive).
func Align(n, a int64) int64 {
	if r := n % a; r != 0 {
		return n + a - r
	}
	return n
}

// Padding returns the number of bytes needed to align n to a.
func Padding(n, a int64) int64 {
	return Align(n, a) - n
}
