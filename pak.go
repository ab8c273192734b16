package spiral

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/spiral-tools/spiral/binio"
)

// Pak is an index-addressed PAK archive. The format has no magic; it is a
// little-endian entry count followed by the entry offsets.
type Pak struct {
	File []PakFile

	src DataSource
}

// PakFile is a file stored in a Pak. Its size is the distance to the next
// offset (or the end of the archive for the last one).
type PakFile struct {
	Index  int
	Offset uint64
	Size   uint64
}

// ParsePak parses a Pak from src.
func ParsePak(src DataSource) (*Pak, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get pak size: %w", err)
	}
	rc, err := src()
	if err != nil {
		return nil, fmt.Errorf("open pak: %w", err)
	}
	defer rc.Close()

	r := bufio.NewReader(rc)

	n, err := binio.ReadUint32LE(r)
	if err != nil {
		return nil, fmt.Errorf("read pak file count: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("read pak file count: %w", ErrNoEntries)
	} else if n > MaxEntries || int64(n) > (size-4)/4 {
		return nil, fmt.Errorf("read pak file count: %w (%d in %d bytes)", ErrTooManyEntries, n, size)
	}
	table := 4 + 4*uint64(n)

	p := &Pak{src: src, File: make([]PakFile, n)}
	for i := range p.File {
		off, err := binio.ReadUint32LE(r)
		if err != nil {
			return nil, fmt.Errorf("read pak file %d offset: %w", i, err)
		}
		switch {
		case uint64(off) < table:
			return nil, fmt.Errorf("%w: pak file %d offset %d is inside the offset table", ErrOutOfBounds, i, off)
		case uint64(off) > uint64(size):
			return nil, fmt.Errorf("%w: pak file %d offset %d exceeds pak size %d", ErrOutOfBounds, i, off, size)
		case i != 0 && uint64(off) < p.File[i-1].Offset:
			return nil, fmt.Errorf("%w: pak file %d offset %d is before the previous file", ErrOutOfBounds, i, off)
		}
		p.File[i] = PakFile{Index: i, Offset: uint64(off)}
	}
	for i := range p.File {
		end := uint64(size)
		if i+1 < len(p.File) {
			end = p.File[i+1].Offset
		}
		p.File[i].Size = end - p.File[i].Offset
	}
	return p, nil
}

// Entries implements Archive. Entries are named by their index.
func (p *Pak) Entries() []Entry {
	es := make([]Entry, len(p.File))
	for i, f := range p.File {
		es[i] = Entry{
			Name:   strconv.Itoa(f.Index),
			Offset: f.Offset,
			Size:   f.Size,
			Source: SubSource(p.src, int64(f.Offset), int64(f.Size)),
		}
	}
	return es
}

// OpenFile opens the contents of f.
func (p *Pak) OpenFile(f PakFile) (io.ReadCloser, error) {
	return SubSource(p.src, int64(f.Offset), int64(f.Size))()
}

// CustomPak builds a new Pak. Entry names are discarded.
type CustomPak struct {
	// Align, if greater than one, aligns each entry's offset to a multiple of
	// it.
	Align   int
	entries []Entry
}

// Add queues a file of the provided size read from src.
func (c *CustomPak) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a.
func (c *CustomPak) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

// Compile writes the Pak to w.
func (c *CustomPak) Compile(w io.Writer) error {
	if len(c.entries) == 0 {
		return fmt.Errorf("write pak: %w", ErrNoEntries)
	}
	align := int64(c.Align)
	if align < 1 {
		align = 1
	}

	offsets := make([]int64, len(c.entries))
	off := 4 + 4*int64(len(c.entries))
	for i, e := range c.entries {
		off = binio.Align(off, align)
		offsets[i] = off
		off += int64(e.Size)
	}
	if off > 0xFFFFFFFF {
		return fmt.Errorf("write pak: archive size %d exceeds 32-bit offsets", off)
	}

	bw := bufio.NewWriter(w)
	cw := &binio.CountWriter{W: bw}

	if err := binio.WriteUint32LE(cw, uint32(len(c.entries))); err != nil {
		return fmt.Errorf("write pak file count: %w", err)
	}
	for i, o := range offsets {
		if err := binio.WriteUint32LE(cw, uint32(o)); err != nil {
			return fmt.Errorf("write pak file %d offset: %w", i, err)
		}
	}
	for i, e := range c.entries {
		if err := binio.WritePadding(cw, offsets[i]-cw.N); err != nil {
			return fmt.Errorf("write pak file %d padding: %w", i, err)
		}
		if err := copyEntry(cw, e); err != nil {
			return fmt.Errorf("write pak file %d: %w", i, err)
		}
	}
	return bw.Flush()
}
