package spiral

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPakRoundTrip(t *testing.T) {
	files := testFiles()

	c := &CustomPak{}
	addFiles(c, files)
	p, err := ParsePak(BytesSource(compile(t, c)))
	require.NoError(t, err)

	es := p.Entries()
	require.Len(t, es, len(files))
	for i, f := range files {
		assert.Equal(t, []string{"0", "1", "2", "3"}[i], es[i].Name)
		assert.True(t, bytes.Equal(f.Data, readEntry(t, es[i])), f.Name)
	}
}

func TestPakAlign(t *testing.T) {
	files := testFiles()

	c := &CustomPak{Align: 0x40}
	addFiles(c, files)
	p, err := ParsePak(BytesSource(compile(t, c)))
	require.NoError(t, err)
	require.Len(t, p.File, len(files))

	// sizes include the padding up to the next entry
	for i, f := range p.File {
		assert.Zero(t, f.Offset%0x40, i)
		assert.GreaterOrEqual(t, f.Size, uint64(len(files[i].Data)))
		b := readEntry(t, p.Entries()[i])
		assert.True(t, bytes.HasPrefix(b, files[i].Data), i)
	}
}

func pakBytes(offsets []uint32, size int) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b, uint32(len(offsets)))
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(b[4+4*i:], o)
	}
	return b
}

func TestPakInvalid(t *testing.T) {
	for _, x := range []struct {
		Name string
		Data []byte
		Err  error
	}{
		{"zero count", pakBytes(nil, 16), ErrNoEntries},
		{"huge count", []byte{0xFF, 0xFF, 0xFF, 0x00, 0, 0, 0, 0}, ErrTooManyEntries},
		{"inside table", pakBytes([]uint32{12, 8}, 32), ErrOutOfBounds},
		{"decreasing", pakBytes([]uint32{20, 16}, 32), ErrOutOfBounds},
		{"past end", pakBytes([]uint32{12, 33}, 32), ErrOutOfBounds},
		{"short", []byte{1, 0}, nil},
	} {
		_, err := ParsePak(BytesSource(x.Data))
		if err == nil {
			t.Errorf("ERR: %s: expected error", x.Name)
			continue
		}
		t.Logf("LOG: %s: %v", x.Name, err)
		if x.Err != nil {
			assert.ErrorIs(t, err, x.Err, x.Name)
		}
	}
}

func TestPakSizes(t *testing.T) {
	p, err := ParsePak(BytesSource(pakBytes([]uint32{16, 16, 20}, 32)))
	require.NoError(t, err)
	assert.Equal(t, []PakFile{
		{Index: 0, Offset: 16, Size: 0},
		{Index: 1, Offset: 16, Size: 4},
		{Index: 2, Offset: 20, Size: 12},
	}, p.File)
}
