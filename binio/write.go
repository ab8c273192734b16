package binio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

func write(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func WriteUint8(w io.Writer, v uint8) error {
	return write(w, []byte{v})
}

func WriteUint16LE(w io.Writer, v uint16) error {
	return write(w, binary.LittleEndian.AppendUint16(nil, v))
}

func WriteUint16BE(w io.Writer, v uint16) error {
	return write(w, binary.BigEndian.AppendUint16(nil, v))
}

func WriteInt16LE(w io.Writer, v int16) error {
	return WriteUint16LE(w, uint16(v))
}

func WriteInt16BE(w io.Writer, v int16) error {
	return WriteUint16BE(w, uint16(v))
}

func WriteUint32LE(w io.Writer, v uint32) error {
	return write(w, binary.LittleEndian.AppendUint32(nil, v))
}

func WriteUint32BE(w io.Writer, v uint32) error {
	return write(w, binary.BigEndian.AppendUint32(nil, v))
}

func WriteInt32LE(w io.Writer, v int32) error {
	return WriteUint32LE(w, uint32(v))
}

func WriteInt32BE(w io.Writer, v int32) error {
	return WriteUint32BE(w, uint32(v))
}

func WriteUint64LE(w io.Writer, v uint64) error {
	return write(w, binary.LittleEndian.AppendUint64(nil, v))
}

func WriteUint64BE(w io.Writer, v uint64) error {
	return write(w, binary.BigEndian.AppendUint64(nil, v))
}

func WriteInt64LE(w io.Writer, v int64) error {
	return WriteUint64LE(w, uint64(v))
}

func WriteInt64BE(w io.Writer, v int64) error {
	return WriteUint64BE(w, uint64(v))
}

func WriteFloat32LE(w io.Writer, v float32) error {
	return WriteUint32LE(w, math.Float32bits(v))
}

func WriteFloat32BE(w io.Writer, v float32) error {
	return WriteUint32BE(w, math.Float32bits(v))
}

// WriteIntXLE writes the low width bytes of v in little-endian order. The
// width must be 1, 2, 4 or 8.
func WriteIntXLE(w io.Writer, v uint64, width int) error {
	switch width {
	case 1:
		return WriteUint8(w, uint8(v))
	case 2:
		return WriteUint16LE(w, uint16(v))
	case 4:
		return WriteUint32LE(w, uint32(v))
	case 8:
		return WriteUint64LE(w, v)
	default:
		return fmt.Errorf("%w: %d is not 1, 2, 4, or 8", ErrInvalidWidth, width)
	}
}

// WriteIntXBE is like WriteIntXLE, but big-endian.
func WriteIntXBE(w io.Writer, v uint64, width int) error {
	switch width {
	case 1:
		return WriteUint8(w, uint8(v))
	case 2:
		return WriteUint16BE(w, uint16(v))
	case 4:
		return WriteUint32BE(w, uint32(v))
	case 8:
		return WriteUint64BE(w, v)
	default:
		return fmt.Errorf("%w: %d is not 1, 2, 4, or 8", ErrInvalidWidth, width)
	}
}

var zeros [64]byte

// WritePadding writes n zero bytes.
func WritePadding(w io.Writer, n int64) error {
	for n > 0 {
		c := min(n, int64(len(zeros)))
		if err := write(w, zeros[:c]); err != nil {
			return err
		}
		n -= c
	}
	return nil
}

// CountWriter counts the bytes written through it. If W is nil, the bytes are
// discarded.
type CountWriter struct {
	W io.Writer
	N int64
}

func (c *CountWriter) Write(b []byte) (n int, err error) {
	if c.W == nil {
		n = len(b)
	} else {
		n, err = c.W.Write(b)
	}
	c.N += int64(n)
	return
}

// CountingReader tracks how many bytes have been read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(b []byte) (n int, err error) {
	n, err = c.R.Read(b)
	c.N += int64(n)
	return
}

// ReadByte implements io.ByteReader so single-byte reads stay cheap when the
// wrapped reader supports it.
func (c *CountingReader) ReadByte() (byte, error) {
	if br, ok := c.R.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err == nil {
			c.N++
		}
		return b, err
	}
	var buf [1]byte
	if _, err := io.ReadFull(c.R, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	c.N++
	return buf[0], nil
}
