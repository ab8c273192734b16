package spiral

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/spiral-tools/spiral/binio"
	"github.com/spiral-tools/spiral/compression"
)

// CPK constants.
const (
	CPKMagic    = "CPK "
	CPKTOCMagic = "TOC "

	// CPKDefaultAlign is the file alignment used by CustomCPK when none is
	// set.
	CPKDefaultAlign = 0x800

	cpkChunkHeaderSize = 0x10
	cpkHeaderRegion    = 0x800
	cpkCopyright       = "(c)CRI"
)

// CPK is a CRI CPK archive.
type CPK struct {
	Header *UTFTable
	TOC    *UTFTable
	File   []CPKFile

	src DataSource
}

// CPKFile is a file listed in a CPK's table of contents.
type CPKFile struct {
	DirName     string
	FileName    string
	ID          uint32
	UserString  string
	FileSize    uint32 // stored size
	ExtractSize uint32
	Offset      uint64 // absolute offset of the stored data
}

// Name returns the path of the file within the archive.
func (f CPKFile) Name() string {
	if f.DirName == "" {
		return f.FileName
	}
	return path.Join(f.DirName, f.FileName)
}

// Compressed reports whether the file is CRILAYLA-compressed.
func (f CPKFile) Compressed() bool {
	return f.FileSize != f.ExtractSize
}

// ParseCPK parses a CPK from src.
func ParseCPK(src DataSource) (*CPK, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get cpk size: %w", err)
	}
	c := &CPK{src: src}

	if c.Header, err = readCPKChunk(src, 0, size, CPKMagic); err != nil {
		return nil, fmt.Errorf("read cpk header: %w", err)
	}
	if len(c.Header.Rows) == 0 {
		return nil, fmt.Errorf("read cpk header: %w: no rows", ErrInvalidTable)
	}

	tocOffset := c.Header.Uint(0, "TocOffset")
	contentOffset := c.Header.Uint(0, "ContentOffset")
	if tocOffset == 0 {
		return nil, fmt.Errorf("read cpk header: %w (no toc)", ErrNoEntries)
	}
	if c.TOC, err = readCPKChunk(src, int64(tocOffset), size, CPKTOCMagic); err != nil {
		return nil, fmt.Errorf("read cpk toc: %w", err)
	}

	base := tocOffset
	if contentOffset != 0 && contentOffset < tocOffset {
		base = contentOffset
	}
	c.File = make([]CPKFile, len(c.TOC.Rows))
	for i := range c.File {
		f := CPKFile{
			DirName:     c.TOC.String(i, "DirName"),
			FileName:    c.TOC.String(i, "FileName"),
			ID:          uint32(c.TOC.Uint(i, "ID")),
			UserString:  c.TOC.String(i, "UserString"),
			FileSize:    uint32(c.TOC.Uint(i, "FileSize")),
			ExtractSize: uint32(c.TOC.Uint(i, "ExtractSize")),
			Offset:      base + c.TOC.Uint(i, "FileOffset"),
		}
		if c.TOC.Column("ExtractSize") < 0 {
			f.ExtractSize = f.FileSize
		}
		if end := f.Offset + uint64(f.FileSize); end < f.Offset || end > uint64(size) {
			return nil, fmt.Errorf("%w: cpk file %q (offset %d, size %d) exceeds cpk size %d", ErrOutOfBounds, f.Name(), f.Offset, f.FileSize, size)
		}
		c.File[i] = f
	}
	return c, nil
}

// readCPKChunk reads a "magic, flag u32, size u64, @UTF" chunk at off.
func readCPKChunk(src DataSource, off, size int64, magic string) (*UTFTable, error) {
	if off+cpkChunkHeaderSize > size {
		return nil, fmt.Errorf("%w: chunk at %d exceeds size %d", ErrOutOfBounds, off, size)
	}
	rc, err := SubSource(src, off, size-off)()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if m, err := binio.ReadBytes(rc, 4); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	} else if string(m) != magic {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, magic, m)
	}
	if _, err := binio.ReadUint32LE(rc); err != nil {
		return nil, fmt.Errorf("read flag: %w", err)
	}
	n, err := binio.ReadUint64LE(rc)
	if err != nil {
		return nil, fmt.Errorf("read table size: %w", err)
	} else if n > uint64(size-off-cpkChunkHeaderSize) {
		return nil, fmt.Errorf("%w: table size %d exceeds remaining %d bytes", ErrOutOfBounds, n, size-off-cpkChunkHeaderSize)
	}
	b, err := binio.ReadBytes(rc, int(n))
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return ParseUTF(b)
}

// Entries implements Archive. Compressed files are decompressed when read.
func (c *CPK) Entries() []Entry {
	es := make([]Entry, len(c.File))
	for i, f := range c.File {
		es[i] = Entry{
			Name:   f.Name(),
			Offset: f.Offset,
			Size:   uint64(f.ExtractSize),
			Source: c.source(f),
		}
	}
	return es
}

// OpenFile opens the decompressed contents of f.
func (c *CPK) OpenFile(f CPKFile) (io.ReadCloser, error) {
	return c.source(f)()
}

func (c *CPK) source(f CPKFile) DataSource {
	raw := SubSource(c.src, int64(f.Offset), int64(f.FileSize))
	if !f.Compressed() {
		return raw
	}
	return decompressSource(raw, compression.DecompressCRILAYLA)
}

// CustomCPK builds a new CPK. Files are stored uncompressed.
type CustomCPK struct {
	// Align is the alignment of each file. If zero, CPKDefaultAlign is used.
	Align   int
	entries []Entry
}

// Add queues a file of the provided size read from src.
func (c *CustomCPK) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a.
func (c *CustomCPK) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

func cpkTOCTable() *UTFTable {
	return &UTFTable{
		Name: "CpkTocInfo",
		Columns: []UTFColumn{
			{Name: "DirName", Storage: UTFStoragePerRow, Type: UTFTypeString},
			{Name: "FileName", Storage: UTFStoragePerRow, Type: UTFTypeString},
			{Name: "FileSize", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "ExtractSize", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "FileOffset", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "ID", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "UserString", Storage: UTFStorageConst, Type: UTFTypeString, Const: utfNullString},
		},
	}
}

func cpkHeaderTable() *UTFTable {
	return &UTFTable{
		Name: "CpkHeader",
		Columns: []UTFColumn{
			{Name: "UpdateDateTime", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "ContentOffset", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "ContentSize", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "TocOffset", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "TocSize", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "EtocOffset", Storage: UTFStorageZero, Type: UTFTypeUint64},
			{Name: "ItocOffset", Storage: UTFStorageZero, Type: UTFTypeUint64},
			{Name: "Files", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "Groups", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "Attrs", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "Version", Storage: UTFStoragePerRow, Type: UTFTypeUint16},
			{Name: "Revision", Storage: UTFStoragePerRow, Type: UTFTypeUint16},
			{Name: "Align", Storage: UTFStoragePerRow, Type: UTFTypeUint16},
			{Name: "Sorted", Storage: UTFStoragePerRow, Type: UTFTypeUint16},
			{Name: "CpkMode", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "Tvers", Storage: UTFStoragePerRow, Type: UTFTypeString},
		},
	}
}

// Compile writes the CPK to w. The header occupies the first 0x800 bytes,
// followed by the table of contents and the aligned file data.
func (c *CustomCPK) Compile(w io.Writer) error {
	align := int64(c.Align)
	if align <= 0 {
		align = CPKDefaultAlign
	}
	if align > 0xFFFF {
		return fmt.Errorf("write cpk: alignment %d exceeds 16 bits", align)
	}

	// file offsets are relative to the toc, which always precedes the content
	const tocOffset = cpkHeaderRegion

	toc := cpkTOCTable()
	rel := make([]int64, len(c.entries))
	var off int64
	for i, e := range c.entries {
		if e.Size > 0xFFFFFFFF {
			return fmt.Errorf("write cpk file %q: size %d exceeds 32 bits", e.Name, e.Size)
		}
		off = binio.Align(off, align)
		rel[i] = off
		off += int64(e.Size)

		dir, file := path.Split(e.Name)
		toc.AddRow(path.Clean("/" + dir)[1:], file, uint32(e.Size), uint32(e.Size), uint64(0), uint32(i))
	}
	contentSize := off

	// offsets are fixed-width, so the toc size is known before they are
	b, err := toc.Encode()
	if err != nil {
		return fmt.Errorf("write cpk toc: %w", err)
	}
	tocSize := int64(cpkChunkHeaderSize + len(b))
	contentOffset := binio.Align(tocOffset+tocSize, align)
	for i := range toc.Rows {
		toc.Rows[i][4] = uint64(contentOffset + rel[i] - tocOffset)
	}
	tocBytes, err := toc.Encode()
	if err != nil {
		return fmt.Errorf("write cpk toc: %w", err)
	}

	hdr := cpkHeaderTable()
	hdr.AddRow(uint64(0), uint64(contentOffset), uint64(contentSize), uint64(tocOffset), uint64(tocSize), nil, nil,
		uint32(len(c.entries)), uint32(0), uint32(0), uint16(7), uint16(0), uint16(align), uint16(1), uint32(1), "spiral")
	hdrBytes, err := hdr.Encode()
	if err != nil {
		return fmt.Errorf("write cpk header: %w", err)
	}
	if cpkChunkHeaderSize+len(hdrBytes)+len(cpkCopyright) > tocOffset {
		return fmt.Errorf("write cpk header: header table is %d bytes", len(hdrBytes))
	}

	bw := bufio.NewWriter(w)
	cw := &binio.CountWriter{W: bw}

	if err := writeCPKChunk(cw, CPKMagic, hdrBytes); err != nil {
		return fmt.Errorf("write cpk header: %w", err)
	}
	if err := binio.WritePadding(cw, tocOffset-int64(len(cpkCopyright))-cw.N); err != nil {
		return fmt.Errorf("write cpk header: %w", err)
	}
	if _, err := io.WriteString(cw, cpkCopyright); err != nil {
		return fmt.Errorf("write cpk header: %w", err)
	}
	if err := writeCPKChunk(cw, CPKTOCMagic, tocBytes); err != nil {
		return fmt.Errorf("write cpk toc: %w", err)
	}
	if err := binio.WritePadding(cw, contentOffset-cw.N); err != nil {
		return fmt.Errorf("write cpk toc padding: %w", err)
	}
	for i, e := range c.entries {
		if err := binio.WritePadding(cw, contentOffset+rel[i]-cw.N); err != nil {
			return fmt.Errorf("write cpk file %q padding: %w", e.Name, err)
		}
		if err := copyEntry(cw, e); err != nil {
			return fmt.Errorf("write cpk file %q: %w", e.Name, err)
		}
	}
	return bw.Flush()
}

func writeCPKChunk(w io.Writer, magic string, table []byte) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binio.WriteUint32LE(w, 0xFF); err != nil {
		return err
	}
	if err := binio.WriteUint64LE(w, uint64(len(table))); err != nil {
		return err
	}
	_, err := io.Copy(w, bytes.NewReader(table))
	return err
}
