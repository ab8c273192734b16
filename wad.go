package spiral

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/spiral-tools/spiral/binio"
)

// WAD constants.
const (
	WADMagic        = "AGAR"
	WADVersionMajor = 1
	WADVersionMinor = 1

	wadMaxNameLength = 0x10000
)

// WAD is a Danganronpa (PC) WAD archive.
type WAD struct {
	MajorVersion uint32
	MinorVersion uint32
	Header       []byte
	File         []WADFile
	Directory    []WADDirectory
	DataOffset   uint64 // start of entry data, which file offsets are relative to

	src DataSource
}

// WADFile is a file stored in a WAD.
type WADFile struct {
	Name   string
	Size   uint64
	Offset uint64
}

// WADDirectory lists the children of a directory in a WAD.
type WADDirectory struct {
	Name    string
	Entries []WADDirectoryEntry
}

// WADDirectoryEntry is a child of a WADDirectory.
type WADDirectoryEntry struct {
	Name   string
	IsFile bool
}

// ParseWAD parses a WAD from src, checking that every file lies within it.
func ParseWAD(src DataSource) (*WAD, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get wad size: %w", err)
	}
	rc, err := src()
	if err != nil {
		return nil, fmt.Errorf("open wad: %w", err)
	}
	defer rc.Close()

	cr := &binio.CountingReader{R: bufio.NewReader(rc)}
	w := &WAD{src: src}
	if err := w.Deserialize(cr); err != nil {
		return nil, err
	}
	w.DataOffset = uint64(cr.N)

	for _, f := range w.File {
		if end := w.DataOffset + f.Offset + f.Size; end < f.Offset || end > uint64(size) {
			return nil, fmt.Errorf("%w: wad file %q (offset %d, size %d) exceeds wad size %d", ErrOutOfBounds, f.Name, f.Offset, f.Size, size)
		}
	}
	return w, nil
}

// Deserialize parses the WAD header, file table and directory table from r
// (leaving r positioned at the start of the file data).
func (w *WAD) Deserialize(r io.Reader) error {
	if magic, err := binio.ReadBytes(r, 4); err != nil {
		return fmt.Errorf("read wad magic: %w", err)
	} else if string(magic) != WADMagic {
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, WADMagic, magic)
	}
	var err error
	if w.MajorVersion, err = binio.ReadUint32LE(r); err != nil {
		return fmt.Errorf("read wad major version: %w", err)
	}
	if w.MinorVersion, err = binio.ReadUint32LE(r); err != nil {
		return fmt.Errorf("read wad minor version: %w", err)
	}
	if n, err := binio.ReadUint32LE(r); err != nil {
		return fmt.Errorf("read wad header size: %w", err)
	} else if w.Header, err = binio.ReadBytes(r, int(n)); err != nil {
		return fmt.Errorf("read wad header: %w", err)
	}

	n, err := binio.ReadUint32LE(r)
	if err != nil {
		return fmt.Errorf("read wad file count: %w", err)
	} else if n == 0 {
		return fmt.Errorf("read wad file count: %w", ErrNoEntries)
	} else if n > MaxEntries {
		return fmt.Errorf("read wad file count: %w (%d)", ErrTooManyEntries, n)
	}
	w.File = make([]WADFile, n)
	for i := range w.File {
		f := &w.File[i]
		if f.Name, err = readWADName(r); err != nil {
			return fmt.Errorf("read wad file %d name: %w", i, err)
		}
		if f.Size, err = binio.ReadUint64LE(r); err != nil {
			return fmt.Errorf("read wad file %q size: %w", f.Name, err)
		}
		if f.Offset, err = binio.ReadUint64LE(r); err != nil {
			return fmt.Errorf("read wad file %q offset: %w", f.Name, err)
		}
	}

	n, err = binio.ReadUint32LE(r)
	if err != nil {
		return fmt.Errorf("read wad directory count: %w", err)
	} else if n > MaxEntries {
		return fmt.Errorf("read wad directory count: %w (%d)", ErrTooManyEntries, n)
	}
	w.Directory = make([]WADDirectory, n)
	for i := range w.Directory {
		d := &w.Directory[i]
		if d.Name, err = readWADName(r); err != nil {
			return fmt.Errorf("read wad directory %d name: %w", i, err)
		}
		c, err := binio.ReadUint32LE(r)
		if err != nil {
			return fmt.Errorf("read wad directory %q entry count: %w", d.Name, err)
		} else if c > MaxEntries {
			return fmt.Errorf("read wad directory %q entry count: %w (%d)", d.Name, ErrTooManyEntries, c)
		}
		d.Entries = make([]WADDirectoryEntry, c)
		for j := range d.Entries {
			e := &d.Entries[j]
			if e.Name, err = readWADName(r); err != nil {
				return fmt.Errorf("read wad directory %q entry %d name: %w", d.Name, j, err)
			}
			t, err := binio.ReadUint8(r)
			if err != nil {
				return fmt.Errorf("read wad directory %q entry %q type: %w", d.Name, e.Name, err)
			}
			e.IsFile = t == 0
		}
	}
	return nil
}

func readWADName(r io.Reader) (string, error) {
	n, err := binio.ReadUint32LE(r)
	if err != nil {
		return "", err
	} else if n > wadMaxNameLength {
		return "", fmt.Errorf("name length %d too long", n)
	}
	b, err := binio.ReadBytes(r, int(n))
	return string(b), err
}

func writeWADName(w io.Writer, s string) error {
	if err := binio.WriteUint32LE(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Entries implements Archive.
func (w *WAD) Entries() []Entry {
	es := make([]Entry, len(w.File))
	for i, f := range w.File {
		es[i] = Entry{
			Name:   f.Name,
			Offset: w.DataOffset + f.Offset,
			Size:   f.Size,
			Source: SubSource(w.src, int64(w.DataOffset+f.Offset), int64(f.Size)),
		}
	}
	return es
}

// OpenFile opens the contents of f.
func (w *WAD) OpenFile(f WADFile) (io.ReadCloser, error) {
	return SubSource(w.src, int64(w.DataOffset+f.Offset), int64(f.Size))()
}

// CustomWAD builds a new WAD.
type CustomWAD struct {
	MajorVersion uint32
	MinorVersion uint32
	Header       []byte
	entries      []Entry
}

// NewCustomWAD creates an empty CustomWAD with the default version.
func NewCustomWAD() *CustomWAD {
	return &CustomWAD{MajorVersion: WADVersionMajor, MinorVersion: WADVersionMinor}
}

// Add queues a file of the provided size read from src.
func (c *CustomWAD) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a.
func (c *CustomWAD) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

// Compile writes the WAD to w. Files are stored in the order they were added.
func (c *CustomWAD) Compile(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := io.WriteString(bw, WADMagic); err != nil {
		return fmt.Errorf("write wad magic: %w", err)
	}
	if err := binio.WriteUint32LE(bw, c.MajorVersion); err != nil {
		return fmt.Errorf("write wad major version: %w", err)
	}
	if err := binio.WriteUint32LE(bw, c.MinorVersion); err != nil {
		return fmt.Errorf("write wad minor version: %w", err)
	}
	if err := binio.WriteUint32LE(bw, uint32(len(c.Header))); err != nil {
		return fmt.Errorf("write wad header size: %w", err)
	}
	if _, err := bw.Write(c.Header); err != nil {
		return fmt.Errorf("write wad header: %w", err)
	}

	if err := binio.WriteUint32LE(bw, uint32(len(c.entries))); err != nil {
		return fmt.Errorf("write wad file count: %w", err)
	}
	var off uint64
	for _, e := range c.entries {
		if err := writeWADName(bw, e.Name); err != nil {
			return fmt.Errorf("write wad file %q name: %w", e.Name, err)
		}
		if err := binio.WriteUint64LE(bw, e.Size); err != nil {
			return fmt.Errorf("write wad file %q size: %w", e.Name, err)
		}
		if err := binio.WriteUint64LE(bw, off); err != nil {
			return fmt.Errorf("write wad file %q offset: %w", e.Name, err)
		}
		off += e.Size
	}

	dirs := c.directories()
	if err := binio.WriteUint32LE(bw, uint32(len(dirs))); err != nil {
		return fmt.Errorf("write wad directory count: %w", err)
	}
	for _, d := range dirs {
		if err := writeWADName(bw, d.Name); err != nil {
			return fmt.Errorf("write wad directory %q name: %w", d.Name, err)
		}
		if err := binio.WriteUint32LE(bw, uint32(len(d.Entries))); err != nil {
			return fmt.Errorf("write wad directory %q entry count: %w", d.Name, err)
		}
		for _, e := range d.Entries {
			if err := writeWADName(bw, e.Name); err != nil {
				return fmt.Errorf("write wad directory %q entry %q: %w", d.Name, e.Name, err)
			}
			var t uint8
			if !e.IsFile {
				t = 1
			}
			if err := binio.WriteUint8(bw, t); err != nil {
				return fmt.Errorf("write wad directory %q entry %q: %w", d.Name, e.Name, err)
			}
		}
	}

	for _, e := range c.entries {
		if err := copyEntry(bw, e); err != nil {
			return fmt.Errorf("write wad file %q: %w", e.Name, err)
		}
	}
	return bw.Flush()
}

// directories builds the directory table from the file paths.
func (c *CustomWAD) directories() []WADDirectory {
	children := map[string][]WADDirectoryEntry{"": nil}
	seen := map[string]struct{}{}
	add := func(dir, name string, file bool) {
		key := dir + "\x00" + name
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		children[dir] = append(children[dir], WADDirectoryEntry{Name: name, IsFile: file})
	}
	for _, e := range c.entries {
		p := strings.Trim(e.Name, "/")
		dir, base := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")
		add(dir, base, true)
		for dir != "" {
			parent, name := path.Split(dir)
			parent = strings.TrimSuffix(parent, "/")
			if _, ok := children[dir]; !ok {
				children[dir] = nil
			}
			add(parent, name, false)
			dir = parent
		}
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make([]WADDirectory, len(names))
	for i, name := range names {
		dirs[i] = WADDirectory{Name: name, Entries: children[name]}
	}
	return dirs
}

// copyEntry streams exactly e.Size bytes of e to w.
func copyEntry(w io.Writer, e Entry) error {
	rc, err := e.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if n, err := io.Copy(w, io.LimitReader(rc, int64(e.Size))); err != nil {
		return err
	} else if n != int64(e.Size) {
		return fmt.Errorf("%w: got %d of %d bytes", binio.ErrTruncatedInput, n, e.Size)
	}
	return nil
}
