// Package spiral manipulates the archive containers used by the Danganronpa
// games (WAD, PAK, SPC, SRD and CPK).
//
// Containers are parsed from a DataSource and never hold entry payloads;
// each Entry re-opens its own section of the source on demand, so entries may
// be extracted lazily, repeatedly, and concurrently.
package spiral

import (
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/spiral-tools/spiral/binio"
)

// Entry is a single addressable blob within a container.
type Entry struct {
	Name   string
	Offset uint64 // logical offset within the container
	Size   uint64 // size of the data provided by Source
	Source DataSource
}

// Open opens the entry's data.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.Source == nil {
		return nil, fmt.Errorf("entry %q has no data source", e.Name)
	}
	return e.Source()
}

// Archive is implemented by containers which can export their contents as a
// list of entries (e.g., to be absorbed by a custom writer).
type Archive interface {
	Entries() []Entry
}

var (
	_ Archive = (*WAD)(nil)
	_ Archive = (*Pak)(nil)
	_ Archive = (*SPC)(nil)
	_ Archive = (*CPK)(nil)
	_ Archive = (*SRD)(nil)
	_ Archive = (*ZipArchive)(nil)
)

// sizeReader fails with binio.ErrTruncatedInput if the underlying reader ends
// before sz bytes were read.
type sizeReader struct {
	r   io.Reader
	sz  int64
	n   int64
	err error
}

func newSizeReader(r io.Reader, sz int64) io.Reader {
	return &sizeReader{r: r, sz: sz}
}

func (r *sizeReader) Read(b []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err = r.r.Read(b)
	r.n += int64(n)
	if err == nil {
		return
	}
	if err == io.EOF && r.n != r.sz {
		err = fmt.Errorf("%w: entry ended after %d of %d bytes", binio.ErrTruncatedInput, r.n, r.sz)
	}
	r.err = err
	return
}

// decompressSource returns a DataSource which reads all of src and passes it
// through fn the first time each opened reader is read from.
func decompressSource(src DataSource, fn func([]byte) ([]byte, error)) DataSource {
	return func() (io.ReadCloser, error) {
		return &lazyReader{src: src, fn: fn}, nil
	}
}

type lazyReader struct {
	src DataSource
	fn  func([]byte) ([]byte, error)

	m sync.Mutex
	b []byte
	e error
	n int
}

func (r *lazyReader) Read(b []byte) (n int, err error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.e != nil {
		return 0, r.e
	}
	if r.decompress(); r.e != nil {
		return 0, r.e
	}
	if r.n >= len(r.b) {
		r.b = nil
		r.e = io.EOF
		return 0, r.e
	}
	n = copy(b, r.b[r.n:])
	r.n += n
	return
}

func (r *lazyReader) decompress() error {
	if r.e != nil {
		return r.e
	}
	if r.b != nil {
		return nil
	}
	src, err := ReadAll(r.src)
	if err != nil {
		r.e = fmt.Errorf("read compressed entry: %w", err)
		return r.e
	}
	dst, err := r.fn(src)
	if err != nil {
		r.e = fmt.Errorf("decompress entry: %w", err)
		return r.e
	}
	if dst == nil {
		dst = []byte{}
	}
	r.b = dst
	return nil
}

func (r *lazyReader) Close() error {
	r.m.Lock()
	defer r.m.Unlock()
	r.b = nil
	if r.e == nil {
		r.e = fs.ErrClosed
	}
	return nil
}
