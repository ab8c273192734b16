package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spiral-tools/spiral/binio"
)

// Header-driven SPC compression constants.
const (
	HeaderSPCMagic       = "$CMP"
	HeaderSPCSegmentSize = 0x8000

	headerSPCLZ     = "$CL1"
	headerSPCStored = "$CR0"
	headerSPCSize   = 16
	segmentHdrSize  = 12
)

// HeaderSPC is the standalone (.cmp) SPC compression wrapper. The data is
// split into segments of at most HeaderSPCSegmentSize bytes, each either
// LZ-compressed with the raw SPC scheme or stored, behind a big-endian header
// recording the original and compressed sizes:
//
//	"$CMP" original_size:u32 payload_size:u32 segment_count:u32
//	{ tag:[4]byte stored_size:u32 original_size:u32 data:[stored_size]byte }...
type HeaderSPC struct{}

// Decompress implements Codec.
func (HeaderSPC) Decompress(r io.Reader) ([]byte, error) {
	buf, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read compressed data: %w", err)
	}
	return DecompressHeaderSPC(buf)
}

// Compress implements Codec.
func (HeaderSPC) Compress(b []byte) (io.Reader, error) {
	return bytes.NewReader(CompressHeaderSPC(b)), nil
}

// IsHeaderSPC checks whether b starts with a plausible $CMP header.
func IsHeaderSPC(b []byte) bool {
	if len(b) < headerSPCSize || string(b[:4]) != HeaderSPCMagic {
		return false
	}
	r := bytes.NewReader(b[4:headerSPCSize])
	_, _ = binio.ReadUint32BE(r)
	payload, _ := binio.ReadUint32BE(r)
	return int64(payload) == int64(len(b)-headerSPCSize)
}

// DecompressHeaderSPC decompresses a complete $CMP block.
func DecompressHeaderSPC(b []byte) ([]byte, error) {
	if len(b) < headerSPCSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrCorruptCompressionHeader, len(b))
	}
	if string(b[:4]) != HeaderSPCMagic {
		return nil, fmt.Errorf("%w: expected magic %q, got %q", ErrCorruptCompressionHeader, HeaderSPCMagic, b[:4])
	}
	r := bytes.NewReader(b[4:])
	originalSize, _ := binio.ReadUint32BE(r)
	payloadSize, _ := binio.ReadUint32BE(r)
	segmentCount, _ := binio.ReadUint32BE(r)
	if int64(payloadSize) != int64(r.Len()) {
		return nil, fmt.Errorf("%w: payload size %d, but %d bytes follow the header", ErrCorruptCompressionHeader, payloadSize, r.Len())
	}
	if uint64(segmentCount)*segmentHdrSize > uint64(payloadSize) {
		return nil, fmt.Errorf("%w: %d segments do not fit in %d bytes", ErrCorruptCompressionHeader, segmentCount, payloadSize)
	}

	if uint64(originalSize) > uint64(segmentCount)*HeaderSPCSegmentSize {
		return nil, fmt.Errorf("%w: original size %d does not fit in %d segments", ErrCorruptCompressionHeader, originalSize, segmentCount)
	}

	out := make([]byte, 0, min(int(originalSize), spcMaxExpansion*len(b)))
	for i := uint32(0); i < segmentCount; i++ {
		tag, err := binio.ReadBytes(r, 4)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: read tag: %w", ErrCorruptCompressionHeader, i, err)
		}
		storedSize, err := binio.ReadUint32BE(r)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: read stored size: %w", ErrCorruptCompressionHeader, i, err)
		}
		segmentSize, err := binio.ReadUint32BE(r)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: read original size: %w", ErrCorruptCompressionHeader, i, err)
		}
		if segmentSize > HeaderSPCSegmentSize {
			return nil, fmt.Errorf("%w: segment %d: original size %d exceeds %d", ErrCorruptCompressionHeader, i, segmentSize, HeaderSPCSegmentSize)
		}
		if int64(storedSize) > int64(r.Len()) {
			return nil, fmt.Errorf("%w: segment %d: stored size %d exceeds remaining %d bytes", ErrCorruptCompressionHeader, i, storedSize, r.Len())
		}
		if uint64(len(out))+uint64(segmentSize) > uint64(originalSize) {
			return nil, fmt.Errorf("%w: segment %d: segments exceed original size %d", ErrCorruptCompressionHeader, i, originalSize)
		}
		data, _ := binio.ReadBytes(r, int(storedSize))

		switch string(tag) {
		case headerSPCLZ:
			seg, err := DecompressSPC(data, int(segmentSize))
			if err != nil {
				return nil, fmt.Errorf("%w: segment %d: %w", ErrCorruptCompressionHeader, i, err)
			}
			out = append(out, seg...)
		case headerSPCStored:
			if storedSize != segmentSize {
				return nil, fmt.Errorf("%w: segment %d: stored segment has size %d, expected %d", ErrCorruptCompressionHeader, i, storedSize, segmentSize)
			}
			out = append(out, data...)
		default:
			return nil, fmt.Errorf("%w: segment %d: unknown tag %q", ErrCorruptCompressionHeader, i, tag)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after the last segment", ErrCorruptCompressionHeader, r.Len())
	}
	if len(out) != int(originalSize) {
		return nil, fmt.Errorf("%w: segments total %d bytes, expected %d", ErrCorruptCompressionHeader, len(out), originalSize)
	}
	return out, nil
}

// CompressHeaderSPC compresses b into a $CMP block. Segments which do not get
// smaller are stored.
func CompressHeaderSPC(b []byte) []byte {
	var payload bytes.Buffer
	var segments uint32
	for off := 0; off < len(b); off += HeaderSPCSegmentSize {
		seg := b[off:min(off+HeaderSPCSegmentSize, len(b))]

		tag, data := headerSPCLZ, CompressSPC(seg)
		if len(data) >= len(seg) {
			tag, data = headerSPCStored, seg
		}
		payload.WriteString(tag)
		_ = binio.WriteUint32BE(&payload, uint32(len(data)))
		_ = binio.WriteUint32BE(&payload, uint32(len(seg)))
		payload.Write(data)
		segments++
	}

	var out bytes.Buffer
	out.Grow(headerSPCSize + payload.Len())
	out.WriteString(HeaderSPCMagic)
	_ = binio.WriteUint32BE(&out, uint32(len(b)))
	_ = binio.WriteUint32BE(&out, uint32(payload.Len()))
	_ = binio.WriteUint32BE(&out, segments)
	out.Write(payload.Bytes())
	return out.Bytes()
}
