package formats

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/spiral-tools/spiral"
)

// ArchiveFormat is a container format.
type ArchiveFormat struct {
	name    string
	ext     string
	open    func(src spiral.DataSource) (spiral.Archive, error)
	create  func(p Params) (Writer, error)
	magic   [][]byte
	score   func(a spiral.Archive) float64
	targets []string
}

var (
	_ Opener  = (*ArchiveFormat)(nil)
	_ Creator = (*ArchiveFormat)(nil)
)

var archiveTargets = []string{"wad", "pak", "spc", "cpk", "zip"}

// Container formats.
var (
	WAD = &ArchiveFormat{
		name: "wad",
		ext:  "wad",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParseWAD(src)
		},
		create: func(Params) (Writer, error) {
			return spiral.NewCustomWAD(), nil
		},
		magic:   [][]byte{[]byte(spiral.WADMagic)},
		score:   singleEntryScore,
		targets: archiveTargets,
	}
	CPK = &ArchiveFormat{
		name: "cpk",
		ext:  "cpk",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParseCPK(src)
		},
		create: func(p Params) (Writer, error) {
			align, err := p.Int(ParamCPKAlign, spiral.CPKDefaultAlign)
			if err != nil {
				return nil, err
			}
			return &spiral.CustomCPK{Align: align}, nil
		},
		magic:   [][]byte{[]byte(spiral.CPKMagic)},
		targets: archiveTargets,
	}
	SPC = &ArchiveFormat{
		name: "spc",
		ext:  "spc",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParseSPC(src)
		},
		create: func(p Params) (Writer, error) {
			compress, err := p.Bool(ParamSPCCompress, true)
			if err != nil {
				return nil, err
			}
			return &spiral.CustomSPC{Compress: compress}, nil
		},
		magic:   [][]byte{[]byte(spiral.SPCMagic)},
		targets: archiveTargets,
	}
	SRD = &ArchiveFormat{
		name: "srd",
		ext:  "srd",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParseSRD(src)
		},
		create: func(Params) (Writer, error) {
			return &spiral.CustomSRD{}, nil
		},
		score: func(a spiral.Archive) float64 {
			if a.(*spiral.SRD).Find(spiral.SRDTagCFH) != nil {
				return 1
			}
			return 0.5
		},
		targets: []string{"zip"},
	}
	PAK = &ArchiveFormat{
		name: "pak",
		ext:  "pak",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParsePak(src)
		},
		create: func(p Params) (Writer, error) {
			align, err := p.Int(ParamPakAlign, 0)
			if err != nil {
				return nil, err
			}
			return &spiral.CustomPak{Align: align}, nil
		},
		score:   singleEntryScore,
		targets: archiveTargets,
	}
	ZIP = &ArchiveFormat{
		name: "zip",
		ext:  "zip",
		open: func(src spiral.DataSource) (spiral.Archive, error) {
			return spiral.ParseZip(src)
		},
		create: func(Params) (Writer, error) {
			return &spiral.CustomZip{}, nil
		},
		magic:   [][]byte{[]byte("PK\x03\x04"), []byte("PK\x05\x06")},
		targets: archiveTargets,
	}
)

// singleEntryScore lowers the confidence of formats without a magic number
// when they only hold one entry, since almost any blob parses as that.
func singleEntryScore(a spiral.Archive) float64 {
	if len(a.Entries()) == 1 {
		return 0.75
	}
	return 1
}

func (f *ArchiveFormat) Name() string      { return f.name }
func (f *ArchiveFormat) Extension() string { return f.ext }

// Open parses src.
func (f *ArchiveFormat) Open(src spiral.DataSource) (spiral.Archive, error) {
	a, err := f.open(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.name, err)
	}
	return a, nil
}

// Create returns a new writer for the format.
func (f *ArchiveFormat) Create(p Params) (Writer, error) {
	if f.create == nil {
		return nil, fmt.Errorf("%w: cannot write %s", ErrUnsupportedConversion, f.name)
	}
	return f.create(p)
}

// Identify implements Format.
func (f *ArchiveFormat) Identify(src spiral.DataSource) float64 {
	if len(f.magic) != 0 {
		b, err := peek(src, 8)
		if err != nil || !slices.ContainsFunc(f.magic, func(m []byte) bool { return bytes.HasPrefix(b, m) }) {
			return 0
		}
	}
	a, err := f.open(src)
	if err != nil || len(a.Entries()) == 0 {
		return 0
	}
	if f.score != nil {
		return f.score(a)
	}
	return 1
}

// CanConvert implements Format.
func (f *ArchiveFormat) CanConvert(to Format) bool {
	if _, ok := to.(Creator); !ok {
		return false
	}
	return slices.Contains(f.targets, to.Name())
}

// Convert implements Format by copying every entry into a new archive of the
// target format.
func (f *ArchiveFormat) Convert(to Format, src spiral.DataSource, w io.Writer, p Params) error {
	if !f.CanConvert(to) {
		return unsupported(f, to)
	}
	a, err := f.Open(src)
	if err != nil {
		return err
	}
	c, err := to.(Creator).Create(p)
	if err != nil {
		return fmt.Errorf("create %s: %w", to.Name(), err)
	}
	c.AddArchive(a)
	if err := c.Compile(w); err != nil {
		return fmt.Errorf("write %s: %w", to.Name(), err)
	}
	return nil
}
