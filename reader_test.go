package spiral

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	c := NewCustomWAD()
	addFiles(c, testFiles())
	w, err := ParseWAD(BytesSource(compile(t, c)))
	require.NoError(t, err)

	fsys := NewFS(w)
	if err := fstest.TestFS(fsys, "a.txt", "dir/b.bin", "dir/sub/c.dat", "dir/sub/d.txt"); err != nil {
		t.Errorf("ERR: %v", err)
	}

	b, err := fs.ReadFile(fsys, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Upupupu!", string(b))

	ds, err := fs.ReadDir(fsys, "dir")
	require.NoError(t, err)
	var names []string
	for _, d := range ds {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"b.bin", "sub"}, names)

	fi, err := fs.Stat(fsys, "dir/b.bin")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, fi.Size())
	assert.IsType(t, Entry{}, fi.Sys())

	_, err = fsys.Open("nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFSPak(t *testing.T) {
	c := &CustomPak{}
	c.Add("", 2, BytesSource([]byte("hi")))
	c.Add("", 3, BytesSource([]byte("bye")))
	p, err := ParsePak(BytesSource(compile(t, c)))
	require.NoError(t, err)

	b, err := fs.ReadFile(NewFS(p), "1")
	require.NoError(t, err)
	assert.Equal(t, "bye", string(b))
}
