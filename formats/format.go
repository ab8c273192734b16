// Package formats identifies game files by content and converts between the
// formats spiral understands.
package formats

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/lin"
)

// ErrUnsupportedConversion is returned by Convert when the source format
// cannot be converted to the target.
var ErrUnsupportedConversion = errors.New("unsupported conversion")

// Format describes a file format.
type Format interface {
	// Name is the short lower-case name of the format.
	Name() string

	// Extension is the canonical file extension, without the dot.
	Extension() string

	// Identify returns how likely it is that src holds this format, from 0
	// (not at all) to 1. Formats which can only be recognized by extension
	// always return 0.
	Identify(src spiral.DataSource) float64

	// CanConvert reports whether Convert supports the target format.
	CanConvert(to Format) bool

	// Convert reads src and writes it to w as the target format.
	Convert(to Format, src spiral.DataSource, w io.Writer, p Params) error
}

// Writer builds a new archive.
type Writer interface {
	Add(name string, size uint64, src spiral.DataSource)
	AddArchive(a spiral.Archive)
	Compile(w io.Writer) error
}

// Opener is implemented by formats which can be opened as an archive.
type Opener interface {
	Format
	Open(src spiral.DataSource) (spiral.Archive, error)
}

// Creator is implemented by formats which archives can be written as.
type Creator interface {
	Format
	Create(p Params) (Writer, error)
}

// Param is a single conversion parameter.
type Param struct {
	Key   string
	Value string
}

// Params are string-keyed conversion options, in the order they were given.
// Keys are namespaced by format (e.g., "lin:game"); keys a format doesn't use
// are ignored.
type Params []Param

// Known parameter keys.
const (
	ParamLinGame     = "lin:game"     // dr1, dr2 or udg
	ParamSPCCompress = "spc:compress" // bool
	ParamCPKAlign    = "cpk:align"    // int
	ParamPakAlign    = "pak:align"    // int
)

// ParseParams parses key=value pairs.
func ParseParams(kv ...string) (Params, error) {
	p := make(Params, 0, len(kv))
	for _, s := range kv {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", s)
		}
		p = append(p, Param{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return p, nil
}

// Get returns the value of the last occurrence of key.
func (p Params) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}

// With returns a copy of p with key set to value if it isn't already set.
func (p Params) With(key, value string) Params {
	if _, ok := p.Get(key); ok {
		return p
	}
	return append(append(Params(nil), p...), Param{key, value})
}

// Bool returns the boolean value of key, or def if it isn't set.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("parameter %s: %w", key, err)
	}
	return b, nil
}

// Int returns the integer value of key, or def if it isn't set.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 0, 0)
	if err != nil {
		return def, fmt.Errorf("parameter %s: %w", key, err)
	}
	return int(n), nil
}

// Table returns the LIN opcode table selected by ParamLinGame, defaulting to
// DR1.
func (p Params) Table() (*lin.OpCodeTable, error) {
	v, ok := p.Get(ParamLinGame)
	if !ok {
		return lin.DR1, nil
	}
	g, err := lin.ParseGame(v)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", ParamLinGame, err)
	}
	return g.Table()
}

func unsupported(from, to Format) error {
	return fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from.Name(), to.Name())
}

// peek reads up to n bytes from the start of src.
func peek(src spiral.DataSource, n int) ([]byte, error) {
	rc, err := src()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b := make([]byte, n)
	m, err := io.ReadFull(rc, b)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return b[:m], err
}
