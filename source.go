package spiral

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spiral-tools/spiral/binio"
)

// DataSource opens a fresh reader positioned at the start of some data. It
// may be called any number of times, including concurrently; the caller
// closes each reader it opens.
type DataSource func() (io.ReadCloser, error)

// BytesSource returns a DataSource reading b.
func BytesSource(b []byte) DataSource {
	return func() (io.ReadCloser, error) {
		return nopCloser{bytes.NewReader(b)}, nil
	}
}

// FileSource returns a DataSource opening the file at path.
func FileSource(path string) DataSource {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// SubSource returns a DataSource reading size bytes at off within src. Readers
// opened from it fail with binio.ErrTruncatedInput if src ends early.
func SubSource(src DataSource, off, size int64) DataSource {
	return func() (io.ReadCloser, error) {
		rc, err := src()
		if err != nil {
			return nil, err
		}
		if ra, ok := rc.(io.ReaderAt); ok {
			return readCloser{newSizeReader(io.NewSectionReader(ra, off, size), size), rc}, nil
		}
		if err := binio.Skip(rc, off); err != nil {
			rc.Close()
			return nil, fmt.Errorf("seek to offset %d: %w", off, err)
		}
		return readCloser{newSizeReader(io.LimitReader(rc, size), size), rc}, nil
	}
}

// Size returns the length of the data provided by src.
func Size(src DataSource) (int64, error) {
	rc, err := src()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	switch r := rc.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		if fi, err := r.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size(), nil
		}
	case interface{ Size() int64 }:
		return r.Size(), nil
	}
	if s, ok := rc.(io.Seeker); ok {
		if n, err := s.Seek(0, io.SeekEnd); err == nil {
			return n, nil
		}
	}
	return io.Copy(io.Discard, rc)
}

// ReadAll reads the entire contents of src.
func ReadAll(src DataSource) ([]byte, error) {
	rc, err := src()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Ext returns the lower-case extension of name without the leading dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

type readCloser struct {
	io.Reader
	c io.Closer
}

func (r readCloser) Close() error {
	return r.c.Close()
}
