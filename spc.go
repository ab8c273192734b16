package spiral

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/spiral-tools/spiral/binio"
	"github.com/spiral-tools/spiral/compression"
)

// SPC constants.
const (
	SPCMagic      = "CPS."
	SPCTableMagic = "Root"

	// SPCFlagStored and SPCFlagCompressed are the compression flags of an SPC
	// entry.
	SPCFlagStored     = 0x01
	SPCFlagCompressed = 0x02

	spcAlign = 0x10
)

// SPC is an SPC archive.
type SPC struct {
	Unknown1 [0x24]byte
	Unknown2 uint32
	File     []SPCFile

	src DataSource
}

// SPCFile is a file stored in an SPC.
type SPCFile struct {
	Name             string
	CompressionFlag  uint16
	UnknownFlag      uint16
	CompressedSize   uint32
	DecompressedSize uint32
	Offset           uint64 // offset of the stored data
}

// Compressed reports whether the stored data needs to be passed through the
// raw SPC decompressor.
func (f SPCFile) Compressed() bool {
	return f.CompressionFlag == SPCFlagCompressed || f.CompressedSize != f.DecompressedSize
}

// ParseSPC parses an SPC from src.
func ParseSPC(src DataSource) (*SPC, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get spc size: %w", err)
	}
	rc, err := src()
	if err != nil {
		return nil, fmt.Errorf("open spc: %w", err)
	}
	defer rc.Close()

	r := &binio.CountingReader{R: bufio.NewReader(rc)}
	s := &SPC{src: src}

	if magic, err := binio.ReadBytes(r, 4); err != nil {
		return nil, fmt.Errorf("read spc magic: %w", err)
	} else if string(magic) != SPCMagic {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, SPCMagic, magic)
	}
	if err := binio.ReadFull(r, s.Unknown1[:]); err != nil {
		return nil, fmt.Errorf("read spc header: %w", err)
	}
	n, err := binio.ReadUint32LE(r)
	if err != nil {
		return nil, fmt.Errorf("read spc file count: %w", err)
	} else if n > MaxEntries {
		return nil, fmt.Errorf("read spc file count: %w (%d)", ErrTooManyEntries, n)
	}
	if s.Unknown2, err = binio.ReadUint32LE(r); err != nil {
		return nil, fmt.Errorf("read spc header: %w", err)
	}
	if err := binio.Skip(r, 0x10); err != nil {
		return nil, fmt.Errorf("read spc header: %w", err)
	}
	if magic, err := binio.ReadBytes(r, 4); err != nil {
		return nil, fmt.Errorf("read spc table magic: %w", err)
	} else if string(magic) != SPCTableMagic {
		return nil, fmt.Errorf("%w: expected table %q, got %q", ErrInvalidMagic, SPCTableMagic, magic)
	}
	if err := binio.Skip(r, 0x0C); err != nil {
		return nil, fmt.Errorf("read spc header: %w", err)
	}

	s.File = make([]SPCFile, 0, min(n, 256))
	for i := 0; i < int(n); i++ {
		var f SPCFile
		if f.CompressionFlag, err = binio.ReadUint16LE(r); err != nil {
			return nil, fmt.Errorf("read spc file %d compression flag: %w", i, err)
		}
		if f.UnknownFlag, err = binio.ReadUint16LE(r); err != nil {
			return nil, fmt.Errorf("read spc file %d flag: %w", i, err)
		}
		if f.CompressedSize, err = binio.ReadUint32LE(r); err != nil {
			return nil, fmt.Errorf("read spc file %d compressed size: %w", i, err)
		}
		if f.DecompressedSize, err = binio.ReadUint32LE(r); err != nil {
			return nil, fmt.Errorf("read spc file %d decompressed size: %w", i, err)
		}
		nameLen, err := binio.ReadUint32LE(r)
		if err != nil {
			return nil, fmt.Errorf("read spc file %d name length: %w", i, err)
		} else if int64(nameLen) > size {
			return nil, fmt.Errorf("%w: spc file %d name length %d exceeds spc size", ErrOutOfBounds, i, nameLen)
		}
		if err := binio.Skip(r, 0x10); err != nil {
			return nil, fmt.Errorf("read spc file %d: %w", i, err)
		}
		name, err := binio.ReadBytes(r, int(nameLen))
		if err != nil {
			return nil, fmt.Errorf("read spc file %d name: %w", i, err)
		}
		f.Name = string(name)
		if err := binio.Skip(r, binio.Padding(int64(nameLen)+1, spcAlign)+1); err != nil {
			return nil, fmt.Errorf("read spc file %q name padding: %w", f.Name, err)
		}

		f.Offset = uint64(r.N)
		if end := int64(f.Offset) + int64(f.CompressedSize); end > size {
			return nil, fmt.Errorf("%w: spc file %q (offset %d, size %d) exceeds spc size %d", ErrOutOfBounds, f.Name, f.Offset, f.CompressedSize, size)
		}

		// the last entry's data padding may be missing
		skip := binio.Align(int64(f.CompressedSize), spcAlign)
		if rem := size - int64(f.Offset); skip > rem {
			skip = rem
		}
		if err := binio.Skip(r, skip); err != nil {
			return nil, fmt.Errorf("read spc file %q data: %w", f.Name, err)
		}
		s.File = append(s.File, f)
	}
	return s, nil
}

// Entries implements Archive. Compressed entries are decompressed when read.
func (s *SPC) Entries() []Entry {
	es := make([]Entry, len(s.File))
	for i, f := range s.File {
		es[i] = Entry{
			Name:   f.Name,
			Offset: f.Offset,
			Size:   uint64(f.DecompressedSize),
			Source: s.source(f),
		}
	}
	return es
}

// OpenFile opens the decompressed contents of f.
func (s *SPC) OpenFile(f SPCFile) (io.ReadCloser, error) {
	return s.source(f)()
}

// OpenRaw opens the stored contents of f.
func (s *SPC) OpenRaw(f SPCFile) (io.ReadCloser, error) {
	return SubSource(s.src, int64(f.Offset), int64(f.CompressedSize))()
}

func (s *SPC) source(f SPCFile) DataSource {
	raw := SubSource(s.src, int64(f.Offset), int64(f.CompressedSize))
	if !f.Compressed() {
		return raw
	}
	return decompressSource(raw, func(b []byte) ([]byte, error) {
		return compression.DecompressSPC(b, int(f.DecompressedSize))
	})
}

// CustomSPC builds a new SPC.
type CustomSPC struct {
	// Compress stores each entry compressed with the raw SPC codec when that
	// makes it smaller.
	Compress bool
	entries  []Entry
}

// Add queues a file of the provided size read from src.
func (c *CustomSPC) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a.
func (c *CustomSPC) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

// Compile writes the SPC to w.
func (c *CustomSPC) Compile(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := io.WriteString(bw, SPCMagic); err != nil {
		return fmt.Errorf("write spc magic: %w", err)
	}
	if err := binio.WritePadding(bw, 0x24); err != nil {
		return fmt.Errorf("write spc header: %w", err)
	}
	if err := binio.WriteUint32LE(bw, uint32(len(c.entries))); err != nil {
		return fmt.Errorf("write spc file count: %w", err)
	}
	if err := binio.WriteUint32LE(bw, 4); err != nil {
		return fmt.Errorf("write spc header: %w", err)
	}
	if err := binio.WritePadding(bw, 0x10); err != nil {
		return fmt.Errorf("write spc header: %w", err)
	}
	if _, err := io.WriteString(bw, SPCTableMagic); err != nil {
		return fmt.Errorf("write spc table magic: %w", err)
	}
	if err := binio.WritePadding(bw, 0x0C); err != nil {
		return fmt.Errorf("write spc header: %w", err)
	}

	for _, e := range c.entries {
		if err := c.writeEntry(bw, e); err != nil {
			return fmt.Errorf("write spc file %q: %w", e.Name, err)
		}
	}
	return bw.Flush()
}

func (c *CustomSPC) writeEntry(w io.Writer, e Entry) error {
	flag := uint16(SPCFlagStored)
	stored := e.Size

	var data []byte
	if c.Compress {
		raw, err := ReadAll(e.Source)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if uint64(len(raw)) != e.Size {
			return fmt.Errorf("%w: got %d of %d bytes", binio.ErrTruncatedInput, len(raw), e.Size)
		}
		if cmp := compression.CompressSPC(raw); len(cmp) < len(raw) {
			flag, data, stored = SPCFlagCompressed, cmp, uint64(len(cmp))
		} else {
			data = raw
		}
	}
	if stored > 0xFFFFFFFF || e.Size > 0xFFFFFFFF {
		return fmt.Errorf("file size %d exceeds 32 bits", e.Size)
	}

	if err := binio.WriteUint16LE(w, flag); err != nil {
		return err
	}
	if err := binio.WriteUint16LE(w, 4); err != nil {
		return err
	}
	if err := binio.WriteUint32LE(w, uint32(stored)); err != nil {
		return err
	}
	if err := binio.WriteUint32LE(w, uint32(e.Size)); err != nil {
		return err
	}
	if err := binio.WriteUint32LE(w, uint32(len(e.Name))); err != nil {
		return err
	}
	if err := binio.WritePadding(w, 0x10); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.Name); err != nil {
		return err
	}
	if err := binio.WritePadding(w, binio.Padding(int64(len(e.Name))+1, spcAlign)+1); err != nil {
		return err
	}

	if data != nil {
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			return err
		}
	} else if err := copyEntry(w, e); err != nil {
		return err
	}
	return binio.WritePadding(w, binio.Padding(int64(stored), spcAlign))
}
