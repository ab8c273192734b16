package formats

import (
	"fmt"
	"io"
	"strings"

	"github.com/spiral-tools/spiral"
)

// Logger receives debug output from a Registry. It is satisfied by
// *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
}

// Identification is the result of identifying a file.
type Identification struct {
	Format      Format
	Confidence  float64
	ByExtension bool // the format was chosen from the file name alone
}

// Registry is a set of formats. It must not be modified once in use.
type Registry struct {
	Logger Logger

	formats []Format
	ext     map[string]Format
	name    map[string]Format
}

// NewRegistry creates a registry holding the provided formats, in order of
// precedence.
func NewRegistry(fs ...Format) *Registry {
	r := &Registry{
		ext:  map[string]Format{},
		name: map[string]Format{},
	}
	for _, f := range fs {
		r.Register(f)
	}
	return r
}

// Standard returns a registry with every format spiral supports.
func Standard() *Registry {
	return NewRegistry(
		WAD, CPK, SPC, SRD, LIN, PAK, ZIP,
		CMP, CRILAYLA, LZHAM,
		TXT, DATA,
	)
}

// Register adds a format. The first format registered for an extension or
// name keeps it.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
	if ext := strings.ToLower(f.Extension()); ext != "" {
		if _, ok := r.ext[ext]; !ok {
			r.ext[ext] = f
		}
	}
	if _, ok := r.name[f.Name()]; !ok {
		r.name[f.Name()] = f
	}
}

// Formats returns the registered formats in order.
func (r *Registry) Formats() []Format {
	return append([]Format(nil), r.formats...)
}

// Lookup finds a format by name.
func (r *Registry) Lookup(name string) (Format, bool) {
	f, ok := r.name[strings.ToLower(name)]
	return f, ok
}

// ForExtension finds the format for a file extension (with or without the
// leading dot).
func (r *Registry) ForExtension(ext string) (Format, bool) {
	f, ok := r.ext[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

// Identify determines the format of src. If name has a registered extension,
// that format is returned without looking at the data. Otherwise, the format
// with the highest non-zero confidence wins, with ties going to the first
// registered.
func (r *Registry) Identify(name string, src spiral.DataSource) (Identification, bool) {
	if name != "" {
		if f, ok := r.ForExtension(spiral.Ext(name)); ok {
			r.debug("identified by extension", "name", name, "format", f.Name())
			return Identification{Format: f, Confidence: 1, ByExtension: true}, true
		}
	}

	var best Identification
	for _, f := range r.formats {
		c := r.Confidence(f, src)
		r.debug("format candidate", "name", name, "format", f.Name(), "confidence", c)
		if c > best.Confidence {
			best = Identification{Format: f, Confidence: c}
		}
	}
	return best, best.Format != nil
}

// Confidence returns how likely it is that src holds format f, clamped to
// [0, 1]. It can be used to double-check an identification made by
// extension.
func (r *Registry) Confidence(f Format, src spiral.DataSource) float64 {
	return min(max(f.Identify(src), 0), 1)
}

// CanConvert reports whether from can be converted to to.
func (r *Registry) CanConvert(from, to Format) bool {
	return from != nil && to != nil && from.CanConvert(to)
}

// Convert converts src from one format to another, writing the result to w.
// The caller should check CanConvert first; ErrUnsupportedConversion is
// returned otherwise.
func (r *Registry) Convert(from, to Format, src spiral.DataSource, w io.Writer, p Params) error {
	if !r.CanConvert(from, to) {
		if from == nil || to == nil {
			return fmt.Errorf("%w: missing format", ErrUnsupportedConversion)
		}
		return unsupported(from, to)
	}
	r.debug("converting", "from", from.Name(), "to", to.Name(), "params", len(p))
	if err := from.Convert(to, src, w, p); err != nil {
		return fmt.Errorf("convert %s to %s: %w", from.Name(), to.Name(), err)
	}
	return nil
}

func (r *Registry) debug(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Debug(msg, args...)
	}
}
