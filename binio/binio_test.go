package binio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteFixedWidth(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteUint16LE(&b, 0x1234))
	require.NoError(t, WriteUint16BE(&b, 0x1234))
	require.NoError(t, WriteInt32LE(&b, -2))
	require.NoError(t, WriteUint32BE(&b, 0xDEADBEEF))
	require.NoError(t, WriteInt64BE(&b, -1))
	require.NoError(t, WriteUint64LE(&b, 0x0102030405060708))
	require.NoError(t, WriteFloat32LE(&b, 1.5))
	require.NoError(t, WriteFloat32BE(&b, -0.25))

	assert.Equal(t, []byte{0x34, 0x12, 0x12, 0x34}, b.Bytes()[:4])

	r := bytes.NewReader(b.Bytes())
	u16le, err := ReadUint16LE(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16le)
	u16be, err := ReadUint16BE(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16be)
	i32, err := ReadInt32LE(r)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), i32)
	u32, err := ReadUint32BE(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	i64, err := ReadInt64BE(r)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)
	u64, err := ReadUint64LE(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)
	f1, err := ReadFloat32LE(r)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f1)
	f2, err := ReadFloat32BE(r)
	require.NoError(t, err)
	assert.Equal(t, float32(-0.25), f2)
	assert.Zero(t, r.Len())
}

func TestTruncatedInput(t *testing.T) {
	for _, x := range []struct {
		Name string
		Read func() error
	}{
		{"u16", func() error { _, err := ReadUint16LE(bytes.NewReader([]byte{1})); return err }},
		{"u32", func() error { _, err := ReadUint32BE(bytes.NewReader([]byte{1, 2, 3})); return err }},
		{"u64", func() error { _, err := ReadUint64LE(bytes.NewReader(nil)); return err }},
		{"u8", func() error { _, err := ReadUint8(bytes.NewReader(nil)); return err }},
		{"bytes", func() error { _, err := ReadBytes(bytes.NewReader([]byte{1}), 2); return err }},
		{"skip", func() error { return Skip(bytes.NewReader([]byte{1}), 2) }},
	} {
		err := x.Read()
		t.Logf("LOG: %s: %v", x.Name, err)
		if !errors.Is(err, ErrTruncatedInput) {
			t.Errorf("ERR: %s: expected ErrTruncatedInput, got %v", x.Name, err)
		}
	}
}

func TestIntX(t *testing.T) {
	for _, width := range []int{1, 2, 4, 8} {
		var le, be bytes.Buffer
		require.NoError(t, WriteIntXLE(&le, 0x7F, width))
		require.NoError(t, WriteIntXBE(&be, 0x7F, width))
		assert.Len(t, le.Bytes(), width)
		assert.Equal(t, byte(0x7F), le.Bytes()[0])
		assert.Equal(t, byte(0x7F), be.Bytes()[width-1])

		v, err := ReadIntXLE(&le, width)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x7F), v)
		v, err = ReadIntXBE(&be, width)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x7F), v)
	}
}

func TestIntXInvalidWidth(t *testing.T) {
	for _, width := range []int{0, 3, 5, 7, 9, 16, -1} {
		var b bytes.Buffer
		assert.ErrorIs(t, WriteIntXLE(&b, 1, width), ErrInvalidWidth)
		assert.ErrorIs(t, WriteIntXBE(&b, 1, width), ErrInvalidWidth)
		assert.Zero(t, b.Len())

		_, err := ReadIntXLE(bytes.NewReader(make([]byte, 16)), width)
		assert.ErrorIs(t, err, ErrInvalidWidth)
		_, err = ReadIntXBE(bytes.NewReader(make([]byte, 16)), width)
		assert.ErrorIs(t, err, ErrInvalidWidth)
	}
}

func TestNullStringAndPadding(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("Root\x00")
	require.NoError(t, WritePadding(&b, 100))
	assert.Equal(t, 105, b.Len())

	cr := &CountingReader{R: &b}
	s, err := ReadNullString(cr)
	require.NoError(t, err)
	assert.Equal(t, "Root", s)
	assert.Equal(t, int64(5), cr.N)

	assert.Equal(t, int64(16), Align(1, 16))
	assert.Equal(t, int64(16), Align(16, 16))
	assert.Equal(t, int64(0), Padding(32, 16))
	assert.Equal(t, int64(11), Padding(5, 16))
}

func TestReadBytesLarge(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, readChunk)

	b, err := ReadBytes(bytes.NewReader(data), len(data))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, b))

	_, err = ReadBytes(bytes.NewReader(data), 1<<31)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}
