package spiral

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsiBytes(name string, res ...[4]uint32) []byte {
	b := make([]byte, 0x10+len(res)*0x10)
	b[0], b[1], b[2], b[3] = 6, 5, 4, byte(len(res))
	binary.LittleEndian.PutUint16(b[4:], 0xFFFF)
	binary.LittleEndian.PutUint32(b[12:], uint32(len(b)))
	for i, r := range res {
		for j, v := range r {
			binary.LittleEndian.PutUint32(b[0x10+i*0x10+j*4:], v)
		}
	}
	return append(append(b, name...), 0)
}

func txrBytes(w, h int16) []byte {
	b := make([]byte, 0x10)
	binary.LittleEndian.PutUint32(b[0:], 1)
	binary.LittleEndian.PutUint16(b[4:], 1)
	binary.LittleEndian.PutUint16(b[6:], uint16(w))
	binary.LittleEndian.PutUint16(b[8:], uint16(h))
	binary.LittleEndian.PutUint16(b[10:], uint16(w*4))
	b[12] = 0x01
	return b
}

func testSRD(t *testing.T, blocks ...SRDBlock) []byte {
	t.Helper()
	c := &CustomSRD{}
	for _, b := range blocks {
		require.NoError(t, c.AddBlock(b))
	}
	return compile(t, c)
}

func TestSRDParse(t *testing.T) {
	b := testSRD(t,
		SRDBlock{Tag: SRDTagCFH, Reserved: 1},
		SRDBlock{Tag: SRDTagTXR, Data: txrBytes(256, 128), Children: []SRDBlock{
			{Tag: SRDTagRSI, Data: rsiBytes("bustup_00_00.tga", [4]uint32{0x40000010, 0x8000, 0, 0})},
		}},
		SRDBlock{Tag: "$VTX", Data: []byte("vertices...")},
		SRDBlock{Tag: SRDTagCT0},
	)
	s, err := ParseSRD(BytesSource(b))
	require.NoError(t, err)

	var tags []string
	s.Walk(func(e *SRDEntry, depth int) {
		tags = append(tags, string(rune('0'+depth))+e.Tag)
	})
	assert.Equal(t, []string{"0$CFH", "0$TXR", "1$RSI", "0$VTX", "0$CT0"}, tags)
	assert.NotNil(t, s.Find(SRDTagCFH))
	assert.Nil(t, s.Find("$XXX"))
	assert.EqualValues(t, 1, s.Blocks[0].Reserved)

	txr, ok := s.Blocks[1].Kind.(*TXRData)
	require.True(t, ok)
	assert.EqualValues(t, 256, txr.DisplayWidth)
	assert.EqualValues(t, 128, txr.DisplayHeight)
	assert.EqualValues(t, 1024, txr.Scanline)
	assert.EqualValues(t, 1, txr.Format)
	require.NotNil(t, txr.RSI)
	assert.Same(t, s.Blocks[1].Children[0], txr.RSI)

	rsi, ok := txr.RSI.Kind.(*RSIData)
	require.True(t, ok)
	assert.Equal(t, "bustup_00_00.tga", rsi.Name)
	assert.EqualValues(t, 6, rsi.Unknown1)
	assert.EqualValues(t, -1, rsi.Unknown4)
	assert.Equal(t, []RSIResource{{Flags: 4, Location: 0x10, Length: 0x8000}}, rsi.Resources)

	// unknown and data-less tags stay generic
	assert.Nil(t, s.Blocks[2].Kind)
	assert.Nil(t, s.Blocks[3].Kind)
	assert.Equal(t, SRDTagCT0, s.Blocks[3].Tag)
	assert.Zero(t, s.Blocks[3].DataLength)

	rc, err := s.Blocks[2].OpenData()
	require.NoError(t, err)
	var data bytes.Buffer
	_, err = data.ReadFrom(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "vertices...", data.String())
}

func TestSRDSiblingRSI(t *testing.T) {
	b := testSRD(t,
		SRDBlock{Tag: SRDTagTXR, Data: txrBytes(16, 16)},
		SRDBlock{Tag: SRDTagRSI, Data: rsiBytes("tex")},
	)
	s, err := ParseSRD(BytesSource(b))
	require.NoError(t, err)
	txr := s.Blocks[0].Kind.(*TXRData)
	assert.Same(t, s.Blocks[1], txr.RSI)
}

func TestSRDMissingRSI(t *testing.T) {
	b := testSRD(t,
		SRDBlock{Tag: SRDTagTXR, Data: txrBytes(16, 16)},
		SRDBlock{Tag: SRDTagCT0},
	)
	_, err := ParseSRD(BytesSource(b))
	assert.ErrorIs(t, err, ErrMissingRSI)
}

func TestSRDRoundTrip(t *testing.T) {
	b := testSRD(t,
		SRDBlock{Tag: SRDTagCFH},
		SRDBlock{Tag: SRDTagTXR, Data: txrBytes(8, 8), Children: []SRDBlock{
			{Tag: SRDTagRSI, Data: rsiBytes("a")},
		}},
		SRDBlock{Tag: SRDTagCT0},
	)
	s, err := ParseSRD(BytesSource(b))
	require.NoError(t, err)

	es := s.Entries()
	require.Len(t, es, 3)
	assert.Equal(t, []string{"0.cfh", "1.txr", "2.ct0"}, []string{es[0].Name, es[1].Name, es[2].Name})

	c := &CustomSRD{}
	c.AddArchive(s)
	assert.Equal(t, b, compile(t, c))
}

func TestSRDInvalid(t *testing.T) {
	good := testSRD(t, SRDBlock{Tag: "$VTX", Data: make([]byte, 0x30)})

	for _, x := range []struct {
		Name string
		Data []byte
		Err  error
	}{
		{"truncated", good[:0x20], ErrOutOfBounds},
		{"empty", nil, ErrNoEntries},
		{"short rsi", testSRD(t, SRDBlock{Tag: SRDTagRSI, Data: []byte{1, 2}}), nil},
	} {
		_, err := ParseSRD(BytesSource(x.Data))
		if err == nil {
			t.Errorf("ERR: %s: expected error", x.Name)
			continue
		}
		t.Logf("LOG: %s: %v", x.Name, err)
		if x.Err != nil {
			assert.ErrorIs(t, err, x.Err, x.Name)
		}
	}
}
