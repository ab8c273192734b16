package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CRILAYLA constants.
const (
	CRILAYLAMagic = "CRILAYLA"

	// CRILAYLAPrefixSize is the number of leading bytes stored uncompressed
	// after the compressed stream.
	CRILAYLAPrefixSize = 0x100

	crilaylaHeaderSize = 0x10
	crilaylaMinLength  = 3
	crilaylaMaxLength  = 0x1000
	crilaylaMinDist    = 3
	crilaylaMaxDist    = 0x1FFF + crilaylaMinDist
	crilaylaMaxChain   = 64

	// crilaylaMaxExpansion bounds the output produced per stream byte: an
	// extended length continuation adds up to 0xFF bytes per 8 bits.
	crilaylaMaxExpansion = 0x100
)

// ErrTooShort is returned when compressing data which does not fit the
// format's minimum size.
var ErrTooShort = errors.New("input too short")

var crilaylaLengthBits = [...]uint{2, 3, 5, 8}

// CRILAYLA is the CRI Middleware compression used by CPK archives.
//
// The compressed stream is read from its last byte towards its first, MSB
// first, and produces output from the end towards the start. The first
// CRILAYLAPrefixSize bytes of the original data are stored verbatim after the
// stream.
type CRILAYLA struct{}

// Decompress implements Codec.
func (CRILAYLA) Decompress(r io.Reader) ([]byte, error) {
	buf, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read compressed data: %w", err)
	}
	return DecompressCRILAYLA(buf)
}

// Compress implements Codec.
func (CRILAYLA) Compress(b []byte) (io.Reader, error) {
	c, err := CompressCRILAYLA(b)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(c), nil
}

// IsCRILAYLA checks whether b starts with a CRILAYLA header.
func IsCRILAYLA(b []byte) bool {
	return len(b) >= crilaylaHeaderSize && string(b[:8]) == CRILAYLAMagic
}

// DecompressCRILAYLA decompresses a complete CRILAYLA block.
func DecompressCRILAYLA(b []byte) ([]byte, error) {
	if !IsCRILAYLA(b) {
		return nil, fmt.Errorf("%w: missing %s magic", ErrCorruptCompressionHeader, CRILAYLAMagic)
	}
	size := int64(binary.LittleEndian.Uint32(b[8:]))
	streamSize := int64(binary.LittleEndian.Uint32(b[12:]))
	if crilaylaHeaderSize+streamSize+CRILAYLAPrefixSize > int64(len(b)) {
		return nil, fmt.Errorf("%w: stream size %d and prefix exceed %d bytes", ErrCorruptCompressionHeader, streamSize, len(b))
	}
	if size > streamSize*crilaylaMaxExpansion {
		return nil, fmt.Errorf("%w: size %d cannot be produced by a %d byte stream", ErrCorruptCompressionHeader, size, streamSize)
	}

	out := make([]byte, CRILAYLAPrefixSize+size)
	copy(out, b[crilaylaHeaderSize+streamSize:crilaylaHeaderSize+streamSize+CRILAYLAPrefixSize])

	br := backwardBitReader{src: b[crilaylaHeaderSize : crilaylaHeaderSize+streamSize]}
	br.pos = len(br.src) - 1

	end := int64(len(out)) - 1
	var written int64
	for written < size {
		bit, err := br.bits(1)
		if err != nil {
			return nil, err
		}
		if bit == 0 {
			v, err := br.bits(8)
			if err != nil {
				return nil, err
			}
			out[end-written] = byte(v)
			written++
			continue
		}

		off, err := br.bits(13)
		if err != nil {
			return nil, err
		}
		ref := end - written + int64(off) + crilaylaMinDist

		length := crilaylaMinLength
		level := 0
		for ; level < len(crilaylaLengthBits); level++ {
			v, err := br.bits(crilaylaLengthBits[level])
			if err != nil {
				return nil, err
			}
			length += v
			if v != 1<<crilaylaLengthBits[level]-1 {
				break
			}
		}
		if level == len(crilaylaLengthBits) {
			for {
				v, err := br.bits(8)
				if err != nil {
					return nil, err
				}
				length += v
				if v != 0xFF {
					break
				}
			}
		}

		if ref > end {
			return nil, fmt.Errorf("%w: back-reference past the end of output", ErrCorruptStream)
		}
		for i := 0; i < length && written < size; i++ {
			out[end-written] = out[ref]
			ref--
			written++
		}
	}
	return out, nil
}

type backwardBitReader struct {
	src  []byte
	pos  int
	pool byte
	left uint
}

func (r *backwardBitReader) bits(n uint) (int, error) {
	var v int
	for n > 0 {
		if r.left == 0 {
			if r.pos < 0 {
				return 0, fmt.Errorf("%w: bit stream ended early", ErrCorruptStream)
			}
			r.pool, r.left = r.src[r.pos], 8
			r.pos--
		}
		take := min(r.left, n)
		v = v<<take | int(r.pool>>(r.left-take))&(1<<take-1)
		r.left -= take
		n -= take
	}
	return v, nil
}

type bitWriter struct {
	buf []byte
	cur byte
	n   uint
}

func (w *bitWriter) put(v int, n uint) {
	for i := n; i > 0; i-- {
		w.cur = w.cur<<1 | byte(v>>(i-1)&1)
		if w.n++; w.n == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.n = 0, 0
		}
	}
}

func (w *bitWriter) flush() []byte {
	if w.n != 0 {
		w.buf = append(w.buf, w.cur<<(8-w.n))
		w.cur, w.n = 0, 0
	}
	return w.buf
}

// CompressCRILAYLA compresses b, which must be at least CRILAYLAPrefixSize
// bytes long.
func CompressCRILAYLA(b []byte) ([]byte, error) {
	if len(b) < CRILAYLAPrefixSize {
		return nil, fmt.Errorf("%w: crilayla needs at least %d bytes, got %d", ErrTooShort, CRILAYLAPrefixSize, len(b))
	}

	// the decoder produces output back to front, so match forwards over the
	// reversed data
	data := b[CRILAYLAPrefixSize:]
	rev := make([]byte, len(data))
	for i, x := range data {
		rev[len(rev)-1-i] = x
	}

	head := make([]int32, 1<<15)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, len(rev))
	hash := func(i int) int {
		return (int(rev[i])<<10 ^ int(rev[i+1])<<5 ^ int(rev[i+2])) & (len(head) - 1)
	}
	insert := func(i int) {
		if i+2 < len(rev) {
			h := hash(i)
			prev[i] = head[h]
			head[h] = int32(i)
		}
	}

	var w bitWriter
	for i := 0; i < len(rev); {
		var bestLen, bestDist int
		if i+2 < len(rev) {
			for j, depth := int(head[hash(i)]), 0; j >= 0 && i-j <= crilaylaMaxDist && depth < crilaylaMaxChain; j, depth = int(prev[j]), depth+1 {
				if i-j < crilaylaMinDist {
					continue
				}
				var l int
				for l < crilaylaMaxLength && i+l < len(rev) && rev[j+l] == rev[i+l] {
					l++
				}
				if l > bestLen {
					bestLen, bestDist = l, i-j
					if l == crilaylaMaxLength {
						break
					}
				}
			}
		}
		if bestLen < crilaylaMinLength {
			w.put(0, 1)
			w.put(int(rev[i]), 8)
			insert(i)
			i++
			continue
		}

		w.put(1, 1)
		w.put(bestDist-crilaylaMinDist, 13)
		rem := bestLen - crilaylaMinLength
		done := false
		for _, n := range crilaylaLengthBits {
			full := 1<<n - 1
			if rem < full {
				w.put(rem, n)
				done = true
				break
			}
			w.put(full, n)
			rem -= full
		}
		if !done {
			for rem >= 0xFF {
				w.put(0xFF, 8)
				rem -= 0xFF
			}
			w.put(rem, 8)
		}
		for n := 0; n < bestLen; n++ {
			insert(i)
			i++
		}
	}

	stream := w.flush()
	for i, j := 0, len(stream)-1; i < j; i, j = i+1, j-1 {
		stream[i], stream[j] = stream[j], stream[i]
	}

	out := make([]byte, 0, crilaylaHeaderSize+len(stream)+CRILAYLAPrefixSize)
	out = append(out, CRILAYLAMagic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(stream)))
	out = append(out, stream...)
	out = append(out, b[:CRILAYLAPrefixSize]...)
	return out, nil
}
