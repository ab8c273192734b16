package spiral

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spiral-tools/spiral/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPCRoundTrip(t *testing.T) {
	files := testFiles()
	// names on either side of the 16-byte padding boundary
	files = append(files,
		testFile{strings.Repeat("n", 15), []byte("fifteen")},
		testFile{strings.Repeat("n", 16), []byte("sixteen")},
	)

	for _, compress := range []bool{false, true} {
		c := &CustomSPC{Compress: compress}
		addFiles(c, files)
		b := compile(t, c)
		assert.Equal(t, SPCMagic, string(b[:4]))

		s, err := ParseSPC(BytesSource(b))
		require.NoError(t, err)
		assertEntries(t, files, s.Entries())

		for _, f := range s.File {
			assert.Zero(t, f.Offset%0x10, f.Name)
			if !compress {
				assert.EqualValues(t, SPCFlagStored, f.CompressionFlag, f.Name)
				assert.False(t, f.Compressed(), f.Name)
			}
		}
	}
}

func TestSPCCompressedEntry(t *testing.T) {
	data := bytes.Repeat([]byte("Hope's Peak "), 200)

	c := &CustomSPC{Compress: true}
	c.Add("hope.txt", uint64(len(data)), BytesSource(data))
	c.Add("tiny", 1, BytesSource([]byte{1}))
	s, err := ParseSPC(BytesSource(compile(t, c)))
	require.NoError(t, err)
	require.Len(t, s.File, 2)

	f := s.File[0]
	assert.EqualValues(t, SPCFlagCompressed, f.CompressionFlag)
	assert.True(t, f.Compressed())
	assert.Less(t, f.CompressedSize, f.DecompressedSize)

	// incompressible entries fall back to being stored
	assert.EqualValues(t, SPCFlagStored, s.File[1].CompressionFlag)

	rc, err := s.OpenRaw(f)
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = raw.ReadFrom(rc)
	rc.Close()
	require.NoError(t, err)
	assert.EqualValues(t, f.CompressedSize, raw.Len())

	rc, err = s.OpenFile(f)
	require.NoError(t, err)
	var dec bytes.Buffer
	_, err = dec.ReadFrom(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, data, dec.Bytes())
}

func TestSPCDecompressedSizeBoundsAllocation(t *testing.T) {
	data := bytes.Repeat([]byte("Hope's Peak "), 200)

	c := &CustomSPC{Compress: true}
	c.Add("hope.txt", uint64(len(data)), BytesSource(data))
	s, err := ParseSPC(BytesSource(compile(t, c)))
	require.NoError(t, err)
	require.True(t, s.File[0].Compressed())

	f := s.File[0]
	f.DecompressedSize = 0xFFFFFFF0

	n := allocated(func() {
		var rc io.ReadCloser
		if rc, err = s.OpenFile(f); err == nil {
			_, err = io.Copy(io.Discard, rc)
			rc.Close()
		}
	})
	t.Logf("LOG: allocated %d bytes: %v", n, err)
	assert.ErrorIs(t, err, compression.ErrCorruptStream)
	assert.Less(t, n, uint64(allocLimit))
}

func TestSPCInvalid(t *testing.T) {
	c := &CustomSPC{}
	addFiles(c, testFiles())
	good := compile(t, c)

	bad := bytes.Clone(good)
	copy(bad[0x40:], "Toor")

	for _, x := range []struct {
		Name string
		Data []byte
		Err  error
	}{
		{"magic", append([]byte("SPC."), good[4:]...), ErrInvalidMagic},
		{"table magic", bad, ErrInvalidMagic},
		{"truncated", good[:len(good)-0x20], ErrOutOfBounds},
		{"header only", good[:0x30], nil},
	} {
		_, err := ParseSPC(BytesSource(x.Data))
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

func TestSPCEmpty(t *testing.T) {
	s, err := ParseSPC(BytesSource(compile(t, &CustomSPC{})))
	require.NoError(t, err)
	assert.Empty(t, s.Entries())
}
