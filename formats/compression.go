package formats

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/compression"
)

// CompressionFormat is a whole-file compression wrapper.
type CompressionFormat struct {
	name  string
	ext   string
	codec compression.Codec
	sniff func(head []byte, size int64) bool // nil if only known by extension
}

// Compression formats. CRILAYLA keeps the first
// compression.CRILAYLAPrefixSize bytes uncompressed, so converting shorter
// DATA to it fails with compression.ErrTooShort. LZHAM has no header and is
// only known by extension.
var (
	CMP = &CompressionFormat{
		name:  "cmp",
		ext:   "cmp",
		codec: compression.HeaderSPC{},
		sniff: func(head []byte, size int64) bool {
			return len(head) >= 16 &&
				string(head[:4]) == compression.HeaderSPCMagic &&
				int64(binary.BigEndian.Uint32(head[8:])) == size-16
		},
	}
	CRILAYLA = &CompressionFormat{
		name:  "crilayla",
		ext:   "crilayla",
		codec: compression.CRILAYLA{},
		sniff: func(head []byte, size int64) bool {
			return compression.IsCRILAYLA(head) &&
				0x10+int64(binary.LittleEndian.Uint32(head[12:]))+compression.CRILAYLAPrefixSize <= size
		},
	}
	LZHAM = &CompressionFormat{
		name:  "lzham",
		ext:   "lzham",
		codec: compression.LZHAM{},
	}
)

func (f *CompressionFormat) Name() string      { return f.name }
func (f *CompressionFormat) Extension() string { return f.ext }

// Codec returns the codec used by the format.
func (f *CompressionFormat) Codec() compression.Codec { return f.codec }

// Identify implements Format.
func (f *CompressionFormat) Identify(src spiral.DataSource) float64 {
	if f.sniff == nil {
		return 0
	}
	head, err := peek(src, 16)
	if err != nil {
		return 0
	}
	size, err := spiral.Size(src)
	if err != nil || !f.sniff(head, size) {
		return 0
	}
	return 1
}

// CanConvert implements Format. Compressed data can only be decompressed.
func (f *CompressionFormat) CanConvert(to Format) bool {
	return to == DATA
}

// Convert implements Format.
func (f *CompressionFormat) Convert(to Format, src spiral.DataSource, w io.Writer, _ Params) error {
	if !f.CanConvert(to) {
		return unsupported(f, to)
	}
	rc, err := src()
	if err != nil {
		return err
	}
	defer rc.Close()

	b, err := f.codec.Decompress(rc)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", f.name, err)
	}
	_, err = w.Write(b)
	return err
}

// compress is the DATA side of the conversion.
func (f *CompressionFormat) compress(src spiral.DataSource, w io.Writer) error {
	b, err := spiral.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	r, err := f.codec.Compress(b)
	if err != nil {
		return fmt.Errorf("compress %s: %w", f.name, err)
	}
	_, err = io.Copy(w, r)
	return err
}
