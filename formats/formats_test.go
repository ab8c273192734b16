package formats

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/compression"
	"github.com/spiral-tools/spiral/lin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	Name string
	Data string
}

var testFiles = []testFile{
	{"script/e00_001.lin", "not really a script"},
	{"bgm/dr1_bgm_hca.awb", strings.Repeat("\x00\x01\x02\x03", 300)},
	{"empty", ""},
}

func build(t *testing.T, w Writer, files []testFile) []byte {
	t.Helper()
	for _, f := range files {
		w.Add(f.Name, uint64(len(f.Data)), spiral.BytesSource([]byte(f.Data)))
	}
	var buf bytes.Buffer
	require.NoError(t, w.Compile(&buf))
	return buf.Bytes()
}

func readAll(t *testing.T, e spiral.Entry) string {
	t.Helper()
	b, err := spiral.ReadAll(e.Source)
	require.NoError(t, err, e.Name)
	return string(b)
}

func TestWADConfidence(t *testing.T) {
	r := Standard()

	multi := build(t, spiral.NewCustomWAD(), testFiles)
	single := build(t, spiral.NewCustomWAD(), testFiles[:1])
	empty := build(t, spiral.NewCustomWAD(), nil)

	for _, x := range []struct {
		Name       string
		Data       []byte
		Confidence float64
	}{
		{"multiple entries", multi, 1},
		{"single entry", single, 0.75},
		{"no entries", empty, 0},
		{"truncated", multi[:len(multi)/2], 0},
	} {
		c := r.Confidence(WAD, spiral.BytesSource(x.Data))
		t.Logf("LOG: %s: %v", x.Name, c)
		assert.Equal(t, x.Confidence, c, x.Name)
	}

	id, ok := r.Identify("", spiral.BytesSource(multi))
	require.True(t, ok)
	assert.Equal(t, WAD, id.Format)
	assert.Equal(t, 1.0, id.Confidence)
	assert.False(t, id.ByExtension)

	id, ok = r.Identify("", spiral.BytesSource(single))
	require.True(t, ok)
	assert.Equal(t, WAD, id.Format)
	assert.Equal(t, 0.75, id.Confidence)
}

func TestIdentifyByExtension(t *testing.T) {
	r := Standard()
	pak := spiral.BytesSource(build(t, &spiral.CustomPak{}, testFiles))

	id, ok := r.Identify("dr1_data_us.wad", pak)
	require.True(t, ok)
	assert.Equal(t, WAD, id.Format)
	assert.True(t, id.ByExtension)
	assert.NotZero(t, id.Confidence)

	// the name lies, which a structural re-check reveals
	assert.Zero(t, r.Confidence(id.Format, pak))
	assert.Equal(t, 1.0, r.Confidence(PAK, pak))

	id, ok = r.Identify("dr1_data_us", pak)
	require.True(t, ok)
	assert.Equal(t, PAK, id.Format)
	assert.False(t, id.ByExtension)
}

func TestIdentifyContent(t *testing.T) {
	r := Standard()

	var srdCFH, srdPlain spiral.CustomSRD
	require.NoError(t, srdCFH.AddBlock(spiral.SRDBlock{Tag: spiral.SRDTagCFH, Reserved: 1}))
	require.NoError(t, srdCFH.AddBlock(spiral.SRDBlock{Tag: "$VTX", Data: []byte("vertices")}))
	require.NoError(t, srdPlain.AddBlock(spiral.SRDBlock{Tag: "$VTX", Data: []byte("vertices")}))

	c := &lin.CustomLin{}
	c.AddText("Good morning, everyone!")
	var linBuf bytes.Buffer
	require.NoError(t, c.Compile(&linBuf, lin.DR1))

	data := bytes.Repeat([]byte("Hope's Peak Academy "), 100)
	var cmp bytes.Buffer
	require.NoError(t, DATA.Convert(CMP, spiral.BytesSource(data), &cmp, nil))
	var cri bytes.Buffer
	require.NoError(t, DATA.Convert(CRILAYLA, spiral.BytesSource(data), &cri, nil))

	for _, x := range []struct {
		Name       string
		Data       []byte
		Format     Format
		Confidence float64
	}{
		{"cpk", build(t, &spiral.CustomCPK{}, testFiles), CPK, 1},
		{"spc", build(t, &spiral.CustomSPC{Compress: true}, testFiles), SPC, 1},
		{"pak", build(t, &spiral.CustomPak{}, testFiles), PAK, 1},
		{"single pak", build(t, &spiral.CustomPak{}, testFiles[1:2]), PAK, 0.75},
		{"zip", build(t, &spiral.CustomZip{}, testFiles), ZIP, 1},
		{"srd", build(t, &srdCFH, nil), SRD, 1},
		{"srd without cfh", build(t, &srdPlain, nil), SRD, 0.5},
		{"lin", linBuf.Bytes(), LIN, 1},
		{"cmp", cmp.Bytes(), CMP, 1},
		{"crilayla", cri.Bytes(), CRILAYLA, 1},
		{"text", []byte("Puhuhuhu!\n"), TXT, 0.1},
	} {
		id, ok := r.Identify("", spiral.BytesSource(x.Data))
		if !assert.True(t, ok, x.Name) {
			continue
		}
		t.Logf("LOG: %s: %s %v", x.Name, id.Format.Name(), id.Confidence)
		assert.Equal(t, x.Format, id.Format, x.Name)
		assert.Equal(t, x.Confidence, id.Confidence, x.Name)
	}

	_, ok := r.Identify("", spiral.BytesSource([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	assert.False(t, ok)

	_, ok = r.Identify("", spiral.BytesSource(nil))
	assert.False(t, ok)
}

func TestRegistryLookup(t *testing.T) {
	r := Standard()

	f, ok := r.ForExtension(".WAD")
	require.True(t, ok)
	assert.Equal(t, WAD, f)

	f, ok = r.ForExtension("dat")
	require.True(t, ok)
	assert.Equal(t, DATA, f)

	_, ok = r.ForExtension("exe")
	assert.False(t, ok)

	f, ok = r.Lookup("Zip")
	require.True(t, ok)
	assert.Equal(t, ZIP, f)

	names := make([]string, 0, len(r.Formats()))
	for _, f := range r.Formats() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"wad", "cpk", "spc", "srd", "lin", "pak", "zip", "cmp", "crilayla", "lzham", "txt", "data"}, names)
}

func TestCanConvert(t *testing.T) {
	r := Standard()
	for _, x := range []struct {
		From, To Format
		Can      bool
	}{
		{WAD, ZIP, true},
		{WAD, WAD, true},
		{PAK, CPK, true},
		{CPK, SPC, true},
		{ZIP, PAK, true},
		{SRD, ZIP, true},
		{SRD, WAD, false},
		{WAD, SRD, false},
		{LIN, TXT, true},
		{LIN, ZIP, false},
		{CMP, DATA, true},
		{CMP, LZHAM, false},
		{DATA, CRILAYLA, true},
		{DATA, LZHAM, true},
		{DATA, WAD, false},
		{TXT, DATA, true},
		{WAD, nil, false},
	} {
		assert.Equal(t, x.Can, r.CanConvert(x.From, x.To), "%v -> %v", x.From, x.To)
	}
}

func TestConvertArchives(t *testing.T) {
	r := Standard()
	wad := build(t, spiral.NewCustomWAD(), testFiles)

	for _, x := range []struct {
		To     *ArchiveFormat
		Params Params
	}{
		{WAD, nil},
		{PAK, Params{{ParamPakAlign, "16"}}},
		{SPC, Params{{ParamSPCCompress, "false"}}},
		{SPC, Params{{"unknown:key", "ignored"}}},
		{CPK, Params{{ParamCPKAlign, "0x20"}}},
		{ZIP, nil},
	} {
		var buf bytes.Buffer
		require.NoError(t, r.Convert(WAD, x.To, spiral.BytesSource(wad), &buf, x.Params), x.To.Name())

		a, err := x.To.Open(spiral.BytesSource(buf.Bytes()))
		require.NoError(t, err, x.To.Name())
		es := a.Entries()
		require.Len(t, es, len(testFiles), x.To.Name())
		for i, f := range testFiles {
			if x.To != PAK {
				assert.Equal(t, f.Name, es[i].Name, x.To.Name())
			}
			got := readAll(t, es[i])
			if x.To == PAK {
				// pak entries run up to the next entry's aligned offset
				got = got[:len(f.Data)]
			}
			assert.Equal(t, f.Data, got, "%s %s", x.To.Name(), f.Name)
		}
	}
}

func TestConvertInvalid(t *testing.T) {
	r := Standard()

	var buf bytes.Buffer
	err := r.Convert(SRD, WAD, spiral.BytesSource(nil), &buf, nil)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)

	err = r.Convert(LIN, ZIP, spiral.BytesSource(nil), &buf, nil)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)

	err = r.Convert(nil, ZIP, spiral.BytesSource(nil), &buf, nil)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)
	assert.Zero(t, buf.Len())

	wad := build(t, spiral.NewCustomWAD(), testFiles)
	err = r.Convert(WAD, PAK, spiral.BytesSource(wad), &buf, Params{{ParamPakAlign, "sixteen"}})
	assert.Error(t, err)

	err = r.Convert(PAK, ZIP, spiral.BytesSource(wad), &buf, nil)
	assert.True(t, errors.Is(err, spiral.ErrTooManyEntries) || errors.Is(err, spiral.ErrOutOfBounds), "%v", err)
}

func TestConvertLIN(t *testing.T) {
	c := &lin.CustomLin{}
	c.Add(lin.Speaker{Character: 30})
	c.AddText("I'm Monokuma!")
	c.Add(lin.WaitForInput{Op: 0x4B})
	var b bytes.Buffer
	require.NoError(t, c.Compile(&b, lin.DR2))

	r := Standard()
	var out bytes.Buffer
	require.NoError(t, r.Convert(LIN, TXT, spiral.BytesSource(b.Bytes()), &out, Params{{ParamLinGame, "dr2"}}))
	assert.Equal(t, "Text Count|1\nSpeaker|30\nText|I'm Monokuma!\nWait For Input|\n", out.String())

	out.Reset()
	require.NoError(t, r.Convert(LIN, TXT, spiral.BytesSource(b.Bytes()), &out, nil))
	assert.Contains(t, out.String(), "0x4B|", "dr1 does not know 0x4B")

	err := r.Convert(LIN, TXT, spiral.BytesSource(b.Bytes()), &out, Params{{ParamLinGame, "dr3"}})
	assert.Error(t, err)
}

func TestConvertCompression(t *testing.T) {
	r := Standard()
	data := bytes.Repeat([]byte("Despair Despair Hope "), 200)

	for _, f := range []*CompressionFormat{CMP, CRILAYLA} {
		var c bytes.Buffer
		require.NoError(t, r.Convert(DATA, f, spiral.BytesSource(data), &c, nil), f.Name())
		assert.Less(t, c.Len(), len(data), f.Name())

		var d bytes.Buffer
		require.NoError(t, r.Convert(f, DATA, spiral.BytesSource(c.Bytes()), &d, nil), f.Name())
		assert.Equal(t, data, d.Bytes(), f.Name())

		err := r.Convert(f, DATA, spiral.BytesSource(c.Bytes()[:c.Len()/2]), io.Discard, nil)
		assert.Error(t, err, f.Name())
	}

	short := data[:compression.CRILAYLAPrefixSize-1]
	assert.True(t, r.CanConvert(DATA, CRILAYLA))
	err := r.Convert(DATA, CRILAYLA, spiral.BytesSource(short), io.Discard, nil)
	t.Logf("LOG: short crilayla input: %v", err)
	assert.ErrorIs(t, err, compression.ErrTooShort)

	var c bytes.Buffer
	require.NoError(t, r.Convert(DATA, CMP, spiral.BytesSource(short), &c, nil))
}

func TestParams(t *testing.T) {
	p, err := ParseParams("lin:game=dr2", "cpk:align = 0x800", "spc:compress=0", "lin:game=udg")
	require.NoError(t, err)

	v, ok := p.Get(ParamLinGame)
	assert.True(t, ok)
	assert.Equal(t, "udg", v)

	tbl, err := p.Table()
	require.NoError(t, err)
	assert.Same(t, lin.UDG, tbl)

	n, err := p.Int(ParamCPKAlign, 0)
	require.NoError(t, err)
	assert.Equal(t, 0x800, n)

	n, err = p.Int(ParamPakAlign, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	b, err := p.Bool(ParamSPCCompress, true)
	require.NoError(t, err)
	assert.False(t, b)

	assert.Equal(t, "udg", mustGet(p.With(ParamLinGame, "dr1"), ParamLinGame))
	assert.Equal(t, "1", mustGet(p.With("pak:align", "1"), ParamPakAlign))

	tbl, err = Params(nil).Table()
	require.NoError(t, err)
	assert.Same(t, lin.DR1, tbl)

	_, err = ParseParams("novalue")
	assert.Error(t, err)
	_, err = ParseParams("=value")
	assert.Error(t, err)
	_, err = Params{{ParamSPCCompress, "maybe"}}.Bool(ParamSPCCompress, false)
	assert.Error(t, err)
}

func mustGet(p Params, key string) string {
	v, _ := p.Get(key)
	return v
}

type debugLog struct {
	msgs []string
}

func (d *debugLog) Debug(msg string, _ ...any) {
	d.msgs = append(d.msgs, msg)
}

func TestRegistryLogger(t *testing.T) {
	var l debugLog
	r := Standard()
	r.Logger = &l

	r.Identify("", spiral.BytesSource([]byte("text")))
	assert.Len(t, l.msgs, len(r.Formats()))
	assert.Equal(t, "format candidate", l.msgs[0])
}
