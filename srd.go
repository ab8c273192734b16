package spiral

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/spiral-tools/spiral/binio"
)

// SRD block tags with a typed refinement.
const (
	SRDTagCFH = "$CFH"
	SRDTagRSI = "$RSI"
	SRDTagTXR = "$TXR"
	SRDTagCT0 = "$CT0"

	srdAlign      = 0x10
	srdHeaderSize = 0x10
)

// SRD is a tree of SRD resource blocks.
type SRD struct {
	Blocks []*SRDEntry

	src DataSource
}

// SRDEntry is a single SRD block.
type SRDEntry struct {
	Tag           string
	Offset        uint64 // offset of the block header
	DataLength    uint32
	SubdataLength uint32
	Reserved      uint32
	Children      []*SRDEntry

	// Kind is the typed refinement of the block, or nil if the tag is not
	// understood.
	Kind SRDKind

	src DataSource
}

// SRDKind is implemented by the typed refinements of an SRDEntry.
type SRDKind interface {
	srdKind()
}

var (
	_ SRDKind = (*RSIData)(nil)
	_ SRDKind = (*TXRData)(nil)
)

// RSIData is the resource index of a block.
type RSIData struct {
	Unknown1  uint8
	Unknown2  uint8
	Unknown3  uint8
	Unknown4  int16
	Unknown5  int16
	Unknown6  int16
	Unknown7  int16
	Name      string
	Resources []RSIResource
}

// RSIResource locates a resource in an external SRDV/SRDI file.
type RSIResource struct {
	Flags    uint8 // top nibble of the raw location
	Location int32
	Length   int32
	Unknown1 int32
	Unknown2 int32
}

// TXRData describes a texture. Its pixel data is located by RSI.
type TXRData struct {
	Unknown1      int32
	Swizzle       int16
	DisplayWidth  int16
	DisplayHeight int16
	Scanline      int16
	Format        uint8
	Unknown2      uint8
	Palette       uint8
	PaletteID     uint8

	RSI *SRDEntry
}

func (*RSIData) srdKind() {}
func (*TXRData) srdKind() {}

// DataOffset returns the offset of the block's data.
func (e *SRDEntry) DataOffset() uint64 {
	return e.Offset + srdHeaderSize
}

// SubdataOffset returns the offset of the block's subdata.
func (e *SRDEntry) SubdataOffset() uint64 {
	return e.DataOffset() + uint64(binio.Align(int64(e.DataLength), srdAlign))
}

// BlockSize returns the total size of the block including padding.
func (e *SRDEntry) BlockSize() uint64 {
	return srdHeaderSize + uint64(binio.Align(int64(e.DataLength), srdAlign)) + uint64(binio.Align(int64(e.SubdataLength), srdAlign))
}

// OpenData opens the block's data.
func (e *SRDEntry) OpenData() (io.ReadCloser, error) {
	return SubSource(e.src, int64(e.DataOffset()), int64(e.DataLength))()
}

// OpenSubdata opens the block's raw subdata.
func (e *SRDEntry) OpenSubdata() (io.ReadCloser, error) {
	return SubSource(e.src, int64(e.SubdataOffset()), int64(e.SubdataLength))()
}

// ParseSRD parses an SRD from src. Parsing stops at the end of the stream.
func ParseSRD(src DataSource) (*SRD, error) {
	size, err := Size(src)
	if err != nil {
		return nil, fmt.Errorf("get srd size: %w", err)
	}
	rc, err := src()
	if err != nil {
		return nil, fmt.Errorf("open srd: %w", err)
	}
	defer rc.Close()

	r := &binio.CountingReader{R: bufio.NewReader(rc)}
	blocks, err := parseSRDBlocks(r, size, src, 0)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("read srd: %w", ErrNoEntries)
	}
	return &SRD{Blocks: blocks, src: src}, nil
}

// parseSRDBlocks reads blocks from r until it reaches end.
func parseSRDBlocks(r *binio.CountingReader, end int64, src DataSource, depth int) ([]*SRDEntry, error) {
	if depth > 32 {
		return nil, fmt.Errorf("read srd: blocks nested too deeply")
	}
	var blocks []*SRDEntry
	for end-r.N >= srdHeaderSize {
		e := &SRDEntry{Offset: uint64(r.N), src: src}

		tag, err := binio.ReadBytes(r, 4)
		if err != nil {
			return nil, fmt.Errorf("read srd block at %d: %w", e.Offset, err)
		}
		e.Tag = string(tag)
		if e.DataLength, err = binio.ReadUint32BE(r); err != nil {
			return nil, fmt.Errorf("read srd block %s data length: %w", e.Tag, err)
		}
		if e.SubdataLength, err = binio.ReadUint32BE(r); err != nil {
			return nil, fmt.Errorf("read srd block %s subdata length: %w", e.Tag, err)
		}
		if e.Reserved, err = binio.ReadUint32BE(r); err != nil {
			return nil, fmt.Errorf("read srd block %s: %w", e.Tag, err)
		}
		if dataEnd := int64(e.DataOffset()) + int64(e.DataLength); dataEnd > end {
			return nil, fmt.Errorf("%w: srd block %s at %d data (%d bytes) exceeds its container", ErrOutOfBounds, e.Tag, e.Offset, e.DataLength)
		}
		if subEnd := int64(e.SubdataOffset()) + int64(e.SubdataLength); e.SubdataLength != 0 && subEnd > end {
			return nil, fmt.Errorf("%w: srd block %s at %d subdata (%d bytes) exceeds its container", ErrOutOfBounds, e.Tag, e.Offset, e.SubdataLength)
		}

		switch e.Tag {
		case SRDTagRSI, SRDTagTXR:
			data, err := binio.ReadBytes(r, int(e.DataLength))
			if err != nil {
				return nil, fmt.Errorf("read srd block %s data: %w", e.Tag, err)
			}
			if e.Tag == SRDTagRSI {
				e.Kind, err = parseRSI(data)
			} else {
				e.Kind, err = parseTXR(data)
			}
			if err != nil {
				return nil, fmt.Errorf("read srd block %s at %d: %w", e.Tag, e.Offset, err)
			}
		default:
			if err := binio.Skip(r, int64(e.DataLength)); err != nil {
				return nil, fmt.Errorf("read srd block %s data: %w", e.Tag, err)
			}
		}
		if err := skipSRDPadding(r, int64(e.DataLength), end); err != nil {
			return nil, fmt.Errorf("read srd block %s data padding: %w", e.Tag, err)
		}

		if e.SubdataLength != 0 {
			subEnd := r.N + int64(e.SubdataLength)
			if e.Children, err = parseSRDBlocks(r, subEnd, src, depth+1); err != nil {
				return nil, err
			}
			if err := binio.Skip(r, subEnd-r.N); err != nil {
				return nil, fmt.Errorf("read srd block %s subdata: %w", e.Tag, err)
			}
			if err := skipSRDPadding(r, int64(e.SubdataLength), end); err != nil {
				return nil, fmt.Errorf("read srd block %s subdata padding: %w", e.Tag, err)
			}
		}
		blocks = append(blocks, e)
	}
	if err := linkSRDTextures(blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// skipSRDPadding skips the alignment padding after n bytes, tolerating a
// missing pad at the end of the container.
func skipSRDPadding(r *binio.CountingReader, n, end int64) error {
	return binio.Skip(r, min(binio.Padding(n, srdAlign), end-r.N))
}

// linkSRDTextures resolves the RSI of every TXR block in blocks: the first RSI
// child, or failing that the following sibling.
func linkSRDTextures(blocks []*SRDEntry) error {
	for i, b := range blocks {
		txr, ok := b.Kind.(*TXRData)
		if !ok {
			continue
		}
		for _, c := range b.Children {
			if c.Tag == SRDTagRSI {
				txr.RSI = c
				break
			}
		}
		if txr.RSI == nil && i+1 < len(blocks) && blocks[i+1].Tag == SRDTagRSI {
			txr.RSI = blocks[i+1]
		}
		if txr.RSI == nil {
			return fmt.Errorf("%w: srd block %s at %d", ErrMissingRSI, b.Tag, b.Offset)
		}
	}
	return nil
}

func parseRSI(b []byte) (*RSIData, error) {
	if len(b) < 0x10 {
		return nil, fmt.Errorf("%w: rsi header is %d bytes", binio.ErrTruncatedInput, len(b))
	}
	d := &RSIData{
		Unknown1: b[0],
		Unknown2: b[1],
		Unknown3: b[2],
		Unknown4: int16(binary.LittleEndian.Uint16(b[4:])),
		Unknown5: int16(binary.LittleEndian.Uint16(b[6:])),
		Unknown6: int16(binary.LittleEndian.Uint16(b[8:])),
		Unknown7: int16(binary.LittleEndian.Uint16(b[10:])),
	}
	count := int(b[3])
	nameOffset := int32(binary.LittleEndian.Uint32(b[12:]))

	if len(b) < 0x10+count*0x10 {
		return nil, fmt.Errorf("%w: rsi declares %d resources in %d bytes", binio.ErrTruncatedInput, count, len(b))
	}
	d.Resources = make([]RSIResource, count)
	for i := range d.Resources {
		p := b[0x10+i*0x10:]
		loc := binary.LittleEndian.Uint32(p)
		d.Resources[i] = RSIResource{
			Flags:    uint8(loc >> 28),
			Location: int32(loc & 0x0FFFFFFF),
			Length:   int32(binary.LittleEndian.Uint32(p[4:])),
			Unknown1: int32(binary.LittleEndian.Uint32(p[8:])),
			Unknown2: int32(binary.LittleEndian.Uint32(p[12:])),
		}
	}
	if nameOffset < 0 || int(nameOffset) > len(b) {
		return nil, fmt.Errorf("%w: rsi name offset %d", ErrOutOfBounds, nameOffset)
	}
	name := b[nameOffset:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	d.Name = string(name)
	return d, nil
}

func parseTXR(b []byte) (*TXRData, error) {
	if len(b) < 0x10 {
		return nil, fmt.Errorf("%w: txr header is %d bytes", binio.ErrTruncatedInput, len(b))
	}
	return &TXRData{
		Unknown1:      int32(binary.LittleEndian.Uint32(b[0:])),
		Swizzle:       int16(binary.LittleEndian.Uint16(b[4:])),
		DisplayWidth:  int16(binary.LittleEndian.Uint16(b[6:])),
		DisplayHeight: int16(binary.LittleEndian.Uint16(b[8:])),
		Scanline:      int16(binary.LittleEndian.Uint16(b[10:])),
		Format:        b[12],
		Unknown2:      b[13],
		Palette:       b[14],
		PaletteID:     b[15],
	}, nil
}

// Find returns the first top-level block with the provided tag.
func (s *SRD) Find(tag string) *SRDEntry {
	for _, b := range s.Blocks {
		if b.Tag == tag {
			return b
		}
	}
	return nil
}

// Walk calls fn for every block in depth-first order.
func (s *SRD) Walk(fn func(e *SRDEntry, depth int)) {
	var walk func([]*SRDEntry, int)
	walk = func(es []*SRDEntry, depth int) {
		for _, e := range es {
			fn(e, depth)
			walk(e.Children, depth+1)
		}
	}
	walk(s.Blocks, 0)
}

// Entries implements Archive. Each top-level block is exported whole (header,
// data and subdata) as "<index>.<tag>", which CustomSRD.Add accepts back.
func (s *SRD) Entries() []Entry {
	es := make([]Entry, len(s.Blocks))
	for i, b := range s.Blocks {
		es[i] = Entry{
			Name:   SRDEntryName(i, b.Tag),
			Offset: b.Offset,
			Size:   b.BlockSize(),
			Source: SubSource(s.src, int64(b.Offset), int64(b.BlockSize())),
		}
	}
	return es
}

// SRDEntryName returns the exported name of the block at index i.
func SRDEntryName(i int, tag string) string {
	return fmt.Sprintf("%d.%s", i, strings.ToLower(strings.TrimPrefix(tag, "$")))
}

// SRDBlock is a block to encode with CustomSRD.
type SRDBlock struct {
	Tag      string
	Reserved uint32
	Data     []byte
	Children []SRDBlock
}

// Encode encodes the block, padded to 16 bytes.
func (b SRDBlock) Encode() ([]byte, error) {
	if len(b.Tag) != 4 {
		return nil, fmt.Errorf("encode srd block: tag %q is not 4 bytes", b.Tag)
	}
	var sub bytes.Buffer
	for _, c := range b.Children {
		cb, err := c.Encode()
		if err != nil {
			return nil, err
		}
		sub.Write(cb)
	}

	var buf bytes.Buffer
	buf.WriteString(b.Tag)
	binio.WriteUint32BE(&buf, uint32(len(b.Data)))
	binio.WriteUint32BE(&buf, uint32(sub.Len()))
	binio.WriteUint32BE(&buf, b.Reserved)
	buf.Write(b.Data)
	binio.WritePadding(&buf, binio.Padding(int64(len(b.Data)), srdAlign))
	buf.Write(sub.Bytes())
	binio.WritePadding(&buf, binio.Padding(int64(sub.Len()), srdAlign))
	return buf.Bytes(), nil
}

// CustomSRD builds a new SRD from encoded blocks.
type CustomSRD struct {
	entries []Entry
}

// Add queues an already-encoded block (or sequence of blocks), as exported by
// SRD.Entries.
func (c *CustomSRD) Add(name string, size uint64, src DataSource) {
	c.entries = append(c.entries, Entry{Name: name, Size: size, Source: src})
}

// AddArchive queues every entry of a as an encoded block.
func (c *CustomSRD) AddArchive(a Archive) {
	for _, e := range a.Entries() {
		c.Add(e.Name, e.Size, e.Source)
	}
}

// AddBlock encodes and queues b.
func (c *CustomSRD) AddBlock(b SRDBlock) error {
	buf, err := b.Encode()
	if err != nil {
		return err
	}
	c.Add(SRDEntryName(len(c.entries), b.Tag), uint64(len(buf)), BytesSource(buf))
	return nil
}

// Compile writes the SRD to w.
func (c *CustomSRD) Compile(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range c.entries {
		if err := copyEntry(bw, e); err != nil {
			return fmt.Errorf("write srd block %q: %w", e.Name, err)
		}
		if err := binio.WritePadding(bw, binio.Padding(int64(e.Size), srdAlign)); err != nil {
			return fmt.Errorf("write srd block %q padding: %w", e.Name, err)
		}
	}
	return bw.Flush()
}
