package spiral

import (
	"bytes"
	"testing"

	"github.com/spiral-tools/spiral/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUTFTable() *UTFTable {
	t := &UTFTable{
		Name: "Everything",
		Columns: []UTFColumn{
			{Name: "U8", Storage: UTFStoragePerRow, Type: UTFTypeUint8},
			{Name: "S8", Storage: UTFStoragePerRow, Type: UTFTypeInt8},
			{Name: "U16", Storage: UTFStoragePerRow, Type: UTFTypeUint16},
			{Name: "S16", Storage: UTFStoragePerRow, Type: UTFTypeInt16},
			{Name: "U32", Storage: UTFStoragePerRow, Type: UTFTypeUint32},
			{Name: "S32", Storage: UTFStoragePerRow, Type: UTFTypeInt32},
			{Name: "U64", Storage: UTFStoragePerRow, Type: UTFTypeUint64},
			{Name: "S64", Storage: UTFStoragePerRow, Type: UTFTypeInt64},
			{Name: "F", Storage: UTFStoragePerRow, Type: UTFTypeFloat},
			{Name: "Str", Storage: UTFStoragePerRow, Type: UTFTypeString},
			{Name: "Data", Storage: UTFStoragePerRow, Type: UTFTypeData},
			{Name: "Const", Storage: UTFStorageConst, Type: UTFTypeUint32, Const: uint32(0xC0FFEE)},
			{Name: "ConstStr", Storage: UTFStorageConst, Type: UTFTypeString, Const: "kibou"},
			{Name: "Zero", Storage: UTFStorageZero, Type: UTFTypeUint64},
		},
	}
	t.AddRow(uint8(1), int8(-2), uint16(3), int16(-4), uint32(5), int32(-6), uint64(7), int64(-8), float32(1.5), "naegi", []byte{1, 2, 3})
	t.AddRow(uint8(0xFF), int8(127), uint16(0xFFFF), int16(-32768), uint32(0xFFFFFFFF), int32(-1), uint64(1<<63), int64(-1<<63), float32(-0.25), "kirigiri", []byte{})
	return t
}

func TestUTFRoundTrip(t *testing.T) {
	tbl := testUTFTable()
	b, err := tbl.Encode()
	require.NoError(t, err)
	assert.Equal(t, UTFMagic, string(b[:4]))
	assert.Zero(t, len(b)%8)

	for name, data := range map[string][]byte{
		"plain":     b,
		"encrypted": DecryptUTF(b),
	} {
		u, err := ParseUTF(data)
		require.NoError(t, err, name)
		assert.Equal(t, "Everything", u.Name, name)
		require.Len(t, u.Rows, 2, name)

		exp := testUTFTable()
		for r := range exp.Rows {
			exp.Rows[r][11] = uint32(0xC0FFEE)
			exp.Rows[r][12] = "kibou"
		}
		exp.Columns[11].Const = uint32(0xC0FFEE)
		assert.Equal(t, exp.Columns, u.Columns, name)
		assert.Equal(t, exp.Rows, u.Rows, name)

		assert.EqualValues(t, 0xC0FFEE, u.Uint(1, "Const"))
		assert.EqualValues(t, 5, u.Uint(0, "U32"))
		assert.Equal(t, "kirigiri", u.String(1, "Str"))
		assert.Nil(t, u.Value(0, "Zero"))
		assert.Nil(t, u.Value(0, "Missing"))
		assert.Zero(t, u.Uint(0, "Str"))
	}
}

func TestDecryptUTFInvolution(t *testing.T) {
	b := []byte("@UTF and some more bytes")
	assert.NotEqual(t, b, DecryptUTF(b))
	assert.Equal(t, b, DecryptUTF(DecryptUTF(b)))
}

func TestUTFInvalid(t *testing.T) {
	good, err := testUTFTable().Encode()
	require.NoError(t, err)

	for _, x := range []struct {
		Name   string
		Mangle func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:16] }},
		{"size", func(b []byte) []byte { b[4] = 0x7F; return b }},
		{"rows", func(b []byte) []byte { b[8] = 0x7F; return b }},
		{"type", func(b []byte) []byte { b[0x20] = UTFStoragePerRow | 0x0F; return b }},
		{"storage", func(b []byte) []byte { b[0x20] = 0x70; return b }},
	} {
		_, err := ParseUTF(x.Mangle(bytes.Clone(good)))
		t.Logf("LOG: %s: %v", x.Name, err)
		assert.ErrorIs(t, err, ErrInvalidTable, x.Name)
	}
}

func TestCPKRoundTrip(t *testing.T) {
	files := testFiles()

	for _, align := range []int{0, 1, 0x20} {
		c := &CustomCPK{Align: align}
		addFiles(c, files)
		b := compile(t, c)
		assert.Equal(t, CPKMagic, string(b[:4]))
		assert.Equal(t, CPKTOCMagic, string(b[cpkHeaderRegion:][:4]))

		p, err := ParseCPK(BytesSource(b))
		require.NoError(t, err)
		assertEntries(t, files, p.Entries())

		want := int64(align)
		if want == 0 {
			want = CPKDefaultAlign
		}
		assert.EqualValues(t, want, p.Header.Uint(0, "Align"))
		assert.EqualValues(t, len(files), p.Header.Uint(0, "Files"))
		for i, f := range p.File {
			assert.EqualValues(t, i, f.ID)
			assert.Zero(t, (f.Offset-p.Header.Uint(0, "ContentOffset"))%uint64(want), f.Name())
			assert.False(t, f.Compressed())
		}
		assert.Equal(t, "dir/sub", p.File[2].DirName)
		assert.Equal(t, "c.dat", p.File[2].FileName)
		assert.Equal(t, "", p.File[0].DirName)
	}
}

func TestCPKCompressedFile(t *testing.T) {
	data := append(bytes.Repeat([]byte("Monokuma "), 100), make([]byte, compression.CRILAYLAPrefixSize)...)
	cmp, err := compression.CompressCRILAYLA(data)
	require.NoError(t, err)

	c := &CustomCPK{}
	c.Add("script.bin", uint64(len(cmp)), BytesSource(cmp))
	p, err := ParseCPK(BytesSource(compile(t, c)))
	require.NoError(t, err)

	// mark the stored file as compressed, as a real toc would
	p.File[0].ExtractSize = uint32(len(data))
	require.True(t, p.File[0].Compressed())

	es := p.Entries()
	assert.EqualValues(t, len(data), es[0].Size)
	assert.Equal(t, data, readEntry(t, es[0]))
}

func TestCPKInvalid(t *testing.T) {
	c := &CustomCPK{}
	addFiles(c, testFiles())
	good := compile(t, c)

	for _, x := range []struct {
		Name string
		Data []byte
		Err  error
	}{
		{"magic", append([]byte("CPL "), good[4:]...), ErrInvalidMagic},
		{"toc magic", func() []byte { b := bytes.Clone(good); b[cpkHeaderRegion] = 'X'; return b }(), ErrInvalidMagic},
		{"truncated", good[:len(good)-1], ErrOutOfBounds},
		{"no toc", good[:cpkHeaderRegion], ErrOutOfBounds},
	} {
		_, err := ParseCPK(BytesSource(x.Data))
		if err == nil {
			t.Errorf("ERR: %s: expected error", x.Name)
			continue
		}
		t.Logf("LOG: %s: %v", x.Name, err)
		assert.ErrorIs(t, err, x.Err, x.Name)
	}
}
