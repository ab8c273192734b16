package lin

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/spiral-tools/spiral/binio"
)

// LIN file types.
const (
	TypeScript   = 1 // instructions only
	TypeTextural = 2 // instructions followed by a text block

	headerSizeScript   = 12
	headerSizeTextural = 16
)

// Script is a decoded LIN file.
type Script struct {
	Type         int
	Table        *OpCodeTable
	Instructions []Instruction
	Text         []string
}

// Header is the fixed-size header at the start of a LIN file.
type Header struct {
	Type       int
	HeaderSize int
	TextOffset int // equal to FileSize for TypeScript files
	FileSize   int
}

// ReadHeader decodes the header at the start of b and checks it against n,
// the total length of the file. Only the header itself needs to be in b.
func ReadHeader(b []byte, n int64) (Header, error) {
	if len(b) < headerSizeScript {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(b))
	}
	le := binary.LittleEndian

	h := Header{
		Type:       int(le.Uint32(b[0:])),
		HeaderSize: int(le.Uint32(b[4:])),
	}
	switch h.Type {
	case TypeScript:
		if h.HeaderSize != headerSizeScript {
			return Header{}, fmt.Errorf("%w: type 1 header size is %d", ErrInvalidHeader, h.HeaderSize)
		}
		h.FileSize = int(le.Uint32(b[8:]))
		h.TextOffset = h.FileSize
	case TypeTextural:
		if len(b) < headerSizeTextural || h.HeaderSize != headerSizeTextural {
			return Header{}, fmt.Errorf("%w: type 2 header size is %d", ErrInvalidHeader, h.HeaderSize)
		}
		h.TextOffset = int(le.Uint32(b[8:]))
		h.FileSize = int(le.Uint32(b[12:]))
	default:
		return Header{}, fmt.Errorf("%w: unknown type %d", ErrInvalidHeader, h.Type)
	}
	if int64(h.FileSize) > n || h.TextOffset > h.FileSize || h.TextOffset < h.HeaderSize {
		return Header{}, fmt.Errorf("%w: sections (header %d, text %d, size %d) exceed %d bytes", ErrInvalidHeader, h.HeaderSize, h.TextOffset, h.FileSize, n)
	}
	return h, nil
}

// Parse decodes a LIN file using t.
func Parse(t *OpCodeTable, b []byte) (*Script, error) {
	h, err := ReadHeader(b, int64(len(b)))
	if err != nil {
		return nil, err
	}

	s := &Script{Table: t, Type: h.Type}
	if s.Instructions, err = Decode(t, b[h.HeaderSize:h.TextOffset]); err != nil {
		return nil, fmt.Errorf("decode lin script: %w", err)
	}
	if s.Type == TypeTextural {
		if s.Text, err = parseText(b[h.TextOffset:h.FileSize]); err != nil {
			return nil, fmt.Errorf("decode lin text: %w", err)
		}
	}
	return s, nil
}

func parseText(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: text block is %d bytes", ErrInvalidHeader, len(b))
	}
	le := binary.LittleEndian
	n := le.Uint32(b)
	if uint64(n)*4+4 > uint64(len(b)) {
		return nil, fmt.Errorf("%w: %d strings do not fit in %d bytes", ErrInvalidHeader, n, len(b))
	}
	text := make([]string, n)
	for i := range text {
		off := le.Uint32(b[4+4*i:])
		if off > uint32(len(b)) {
			return nil, fmt.Errorf("%w: string %d offset %d exceeds text block", ErrInvalidHeader, i, off)
		}
		text[i] = decodeUTF16(b[off:])
	}
	return text, nil
}

// decodeUTF16 decodes a BOM-prefixed, NUL-terminated UTF-16LE string.
func decodeUTF16(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		if i == 0 && c == 0xFEFF {
			continue
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}

func encodeUTF16(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2*len(u)+4)
	b = append(b, 0xFF, 0xFE)
	for _, c := range u {
		b = binary.LittleEndian.AppendUint16(b, c)
	}
	return append(b, 0, 0)
}

// Disassemble writes one line per instruction to w. Text instructions show
// the string they refer to when it exists.
func (s *Script) Disassemble(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, in := range s.Instructions {
		line := in.Format()
		if t, ok := in.(Text); ok && t.ID < len(s.Text) {
			line = "Text|" + escapeText(s.Text[t.ID])
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var textEscaper = strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// CustomLin builds a new LIN file.
type CustomLin struct {
	// Type forces the file type. If zero, the file is TypeTextural when it has
	// text and TypeScript otherwise.
	Type int

	instructions []Instruction
	text         []string
}

// Add appends instructions.
func (c *CustomLin) Add(ins ...Instruction) {
	c.instructions = append(c.instructions, ins...)
}

// AddText appends a string to the text block and a Text instruction showing
// it, returning the string's ID.
func (c *CustomLin) AddText(s string) int {
	id := len(c.text)
	c.text = append(c.text, s)
	c.Add(Text{ID: id})
	return id
}

// Compile encodes the file using t and writes it to w. A script with text
// which does not already start with a TextCount instruction gets one.
func (c *CustomLin) Compile(w io.Writer, t *OpCodeTable) error {
	typ := c.Type
	if typ == 0 {
		typ = TypeScript
		if len(c.text) != 0 {
			typ = TypeTextural
		}
	}

	ins := c.instructions
	if len(c.text) != 0 {
		if len(ins) == 0 {
			ins = []Instruction{TextCount{Count: len(c.text)}}
		} else if _, ok := ins[0].(TextCount); !ok {
			ins = append([]Instruction{TextCount{Count: len(c.text)}}, ins...)
		}
	}
	code, err := Encode(t, ins)
	if err != nil {
		return err
	}

	var text []byte
	if typ == TypeTextural {
		text = binary.LittleEndian.AppendUint32(nil, uint32(len(c.text)))
		strs := make([][]byte, len(c.text))
		off := 4 + 4*len(c.text)
		for i, s := range c.text {
			strs[i] = encodeUTF16(s)
			text = binary.LittleEndian.AppendUint32(text, uint32(off))
			off += len(strs[i])
		}
		text = append(text, bytes.Join(strs, nil)...)
	} else if len(c.text) != 0 {
		return fmt.Errorf("%w: type %d files cannot hold text", ErrInvalidHeader, typ)
	}

	bw := bufio.NewWriter(w)
	switch typ {
	case TypeScript:
		size := headerSizeScript + len(code)
		for _, v := range []uint32{TypeScript, headerSizeScript, uint32(size)} {
			if err := binio.WriteUint32LE(bw, v); err != nil {
				return err
			}
		}
	case TypeTextural:
		start := headerSizeTextural + len(code)
		for _, v := range []uint32{TypeTextural, headerSizeTextural, uint32(start), uint32(start + len(text))} {
			if err := binio.WriteUint32LE(bw, v); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrInvalidHeader, typ)
	}
	if _, err := bw.Write(code); err != nil {
		return err
	}
	if _, err := bw.Write(text); err != nil {
		return err
	}
	return bw.Flush()
}
