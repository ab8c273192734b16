package formats

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/lin"
)

// linPeekSize covers both LIN header variants.
const linPeekSize = 16

// textPeekSize is how much of a file is checked for valid UTF-8.
const textPeekSize = 64 * 1024

type linFormat struct{}

// LIN is the script bytecode format. It converts to a TXT disassembly using
// the opcode table selected by ParamLinGame.
var LIN Format = linFormat{}

func (linFormat) Name() string      { return "lin" }
func (linFormat) Extension() string { return "lin" }

func (linFormat) Identify(src spiral.DataSource) float64 {
	head, err := peek(src, linPeekSize)
	if err != nil {
		return 0
	}
	size, err := spiral.Size(src)
	if err != nil {
		return 0
	}
	if _, err := lin.ReadHeader(head, size); err != nil {
		return 0
	}
	return 1
}

func (linFormat) CanConvert(to Format) bool {
	return to == TXT
}

func (f linFormat) Convert(to Format, src spiral.DataSource, w io.Writer, p Params) error {
	if !f.CanConvert(to) {
		return unsupported(f, to)
	}
	t, err := p.Table()
	if err != nil {
		return err
	}
	b, err := spiral.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read lin: %w", err)
	}
	s, err := lin.Parse(t, b)
	if err != nil {
		return fmt.Errorf("parse lin (%s): %w", t.Game, err)
	}
	return s.Disassemble(w)
}

type textFormat struct{}

// TXT is plain UTF-8 text. Almost anything could be text, so it is only ever
// identified with a low confidence.
var TXT Format = textFormat{}

func (textFormat) Name() string      { return "txt" }
func (textFormat) Extension() string { return "txt" }

func (textFormat) Identify(src spiral.DataSource) float64 {
	b, err := peek(src, textPeekSize)
	if err != nil || len(b) == 0 {
		return 0
	}
	if len(b) == textPeekSize {
		// drop the last rune, which may have been cut off
		for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
			if utf8.RuneStart(b[i]) {
				b = b[:i]
				break
			}
		}
	}
	if !utf8.Valid(b) {
		return 0
	}
	return 0.1
}

func (textFormat) CanConvert(to Format) bool {
	return to == DATA
}

func (f textFormat) Convert(to Format, src spiral.DataSource, w io.Writer, _ Params) error {
	if !f.CanConvert(to) {
		return unsupported(f, to)
	}
	return copySource(src, w)
}

type dataFormat struct{}

// DATA is opaque binary data. It is never identified by content.
var DATA Format = dataFormat{}

func (dataFormat) Name() string                       { return "data" }
func (dataFormat) Extension() string                  { return "dat" }
func (dataFormat) Identify(spiral.DataSource) float64 { return 0 }

func (dataFormat) CanConvert(to Format) bool {
	switch to {
	case TXT:
		return true
	}
	_, ok := to.(*CompressionFormat)
	return ok
}

func (f dataFormat) Convert(to Format, src spiral.DataSource, w io.Writer, _ Params) error {
	if !f.CanConvert(to) {
		return unsupported(f, to)
	}
	if c, ok := to.(*CompressionFormat); ok {
		return c.compress(src, w)
	}
	return copySource(src, w)
}

func copySource(src spiral.DataSource, w io.Writer) error {
	rc, err := src()
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	return nil
}
