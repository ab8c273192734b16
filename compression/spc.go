package compression

import (
	"fmt"
	"math/bits"
)

// Raw SPC back-reference limits.
const (
	spcWindow    = 1024
	spcMinLength = 2
	spcMaxLength = 0x3F + spcMinLength
	spcMaxChain  = 64

	// spcMaxExpansion bounds the output produced per input byte: a control
	// byte and eight back-references (17 bytes) expand to at most 8*65.
	spcMaxExpansion = 31
)

// DecompressSPC expands a raw SPC token stream (as stored inside SPC archive
// entries) to exactly size bytes.
//
// Every control byte is bit-reversed, then consumed LSB first, one bit per
// token: a set bit is a literal byte, a clear bit is a little-endian u16
// back-reference whose top six bits are the length minus two and whose low
// ten bits locate the source within the last 1024 output bytes.
func DecompressSPC(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrCorruptStream, size)
	}
	out := make([]byte, 0, min(size, spcMaxExpansion*len(src)))
	flag := uint(1)
	p := 0
	for p < len(src) && len(out) < size {
		if flag == 1 {
			flag = 0x100 | uint(bits.Reverse8(src[p]))
			if p++; p >= len(src) {
				break
			}
		}
		if flag&1 != 0 {
			out = append(out, src[p])
			p++
		} else {
			if p+1 >= len(src) {
				return out, fmt.Errorf("%w: back-reference at offset %d is truncated", ErrCorruptStream, p)
			}
			b := uint(src[p]) | uint(src[p+1])<<8
			p += 2

			count := int(b>>10) + spcMinLength
			start := len(out) - spcWindow + int(b&0x3FF)
			if start < 0 {
				return out, fmt.Errorf("%w: back-reference to %d before start of output", ErrCorruptStream, start)
			}
			for i := 0; i < count && len(out) < size; i++ {
				out = append(out, out[start+i])
			}
		}
		flag >>= 1
	}
	if len(out) != size {
		return out, fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrCorruptStream, len(out), size)
	}
	return out, nil
}

// CompressSPC produces a raw SPC token stream which DecompressSPC expands
// back to src.
func CompressSPC(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/8+1)

	// hash chains keyed on the next two bytes
	head := make([]int32, 1<<16)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, len(src))
	insert := func(i int) {
		if i+1 < len(src) {
			h := uint16(src[i]) | uint16(src[i+1])<<8
			prev[i] = head[h]
			head[h] = int32(i)
		}
	}

	i := 0
	for i < len(src) {
		ctrl := len(out)
		out = append(out, 0)
		for k := 0; k < 8 && i < len(src); k++ {
			var bestLen, bestDist int
			if i+1 < len(src) {
				h := uint16(src[i]) | uint16(src[i+1])<<8
				for j, depth := int(head[h]), 0; j >= 0 && i-j <= spcWindow && depth < spcMaxChain; j, depth = int(prev[j]), depth+1 {
					var l int
					for l < spcMaxLength && i+l < len(src) && src[j+l] == src[i+l] {
						l++
					}
					if l > bestLen {
						bestLen, bestDist = l, i-j
						if l == spcMaxLength {
							break
						}
					}
				}
			}
			if bestLen >= spcMinLength {
				b := uint16(bestLen-spcMinLength)<<10 | uint16(spcWindow-bestDist)
				out = append(out, byte(b), byte(b>>8))
				for n := 0; n < bestLen; n++ {
					insert(i)
					i++
				}
			} else {
				out[ctrl] |= 0x80 >> k
				out = append(out, src[i])
				insert(i)
				i++
			}
		}
	}
	return out
}
