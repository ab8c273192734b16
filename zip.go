package spiral

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZipArchive exposes a zip file as an Archive.
type ZipArchive struct {
	File []ZipFile

	src  DataSource
	size int64
}

// ZipFile is a regular file in a ZipArchive.
type ZipFile struct {
	Name   string
	Size   uint64
	Method uint16

	index int
}

// ParseZip parses the central directory of a zip file from src.
func ParseZip(src DataSource) (*ZipArchive, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get zip size: %w", err)
	}
	zr, c, err := openZip(src, size)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	z := &ZipArchive{src: src, size: size}
	for i, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		z.File = append(z.File, ZipFile{
			Name:   f.Name,
			Size:   f.UncompressedSize64,
			Method: f.Method,
			index:  i,
		})
	}
	return z, nil
}

func openZip(src DataSource, size int64) (*zip.Reader, io.Closer, error) {
	rc, err := src()
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}
	ra, ok := rc.(io.ReaderAt)
	if !ok {
		b, err := io.ReadAll(rc)
		if err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("read zip: %w", err)
		}
		ra, size = bytes.NewReader(b), int64(len(b))
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("read zip directory: %w", err)
	}
	return zr, rc, nil
}

// Entries implements Archive.
func (z *ZipArchive) Entries() []Entry {
	es := make([]Entry, len(z.File))
	for i, f := range z.File {
		es[i] = Entry{
			Name:   f.Name,
			Size:   f.Size,
			Source: z.source(f),
		}
	}
	return es
}

// OpenFile opens the decompressed contents of f.
func (z *ZipArchive) OpenFile(f ZipFile) (io.ReadCloser, error) {
	return z.source(f)()
}

func (z *ZipArchive) source(f ZipFile) DataSource {
	return func() (io.ReadCloser, error) {
		zr, c, err := openZip(z.src, z.size)
		if err != nil {
			return nil, err
		}
		if f.index >= len(zr.File) {
			c.Close()
			return nil, fmt.Errorf("zip file %q: %w", f.Name, ErrOutOfBounds)
		}
		r, err := zr.File[f.index].Open()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open zip file %q: %w", f.Name, err)
		}
		return readCloser{newSizeReader(r, int64(f.Size)), closers{r, c}}, nil
	}
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// CustomZip builds a new zip file.
type CustomZip struct {
	// Store disables deflate compression.
	Store   bool
	entries []Entry
}

// Add queues a file of the provided size read from src.
func (c *CustomZip) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a.
func (c *CustomZip) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

// Compile writes the zip file to w.
func (c *CustomZip) Compile(w io.Writer) error {
	method := zip.Deflate
	if c.Store {
		method = zip.Store
	}
	zw := zip.NewWriter(w)
	for _, e := range c.entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   strings.TrimLeft(e.Name, "/"),
			Method: method,
		})
		if err != nil {
			return fmt.Errorf("write zip file %q: %w", e.Name, err)
		}
		if err := copyEntry(fw, e); err != nil {
			return fmt.Errorf("write zip file %q: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("write zip directory: %w", err)
	}
	return nil
}
