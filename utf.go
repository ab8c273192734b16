package spiral

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spiral-tools/spiral/binio"
)

// UTFMagic is the magic of a CRI @UTF table.
const UTFMagic = "@UTF"

// UTF column storage classes (the high nibble of the column flags).
const (
	UTFStorageMask   = 0xF0
	UTFStorageNone   = 0x00
	UTFStorageZero   = 0x10
	UTFStorageConst  = 0x30
	UTFStoragePerRow = 0x50
)

// UTF column types (the low nibble of the column flags).
const (
	UTFTypeMask   = 0x0F
	UTFTypeUint8  = 0x00
	UTFTypeInt8   = 0x01
	UTFTypeUint16 = 0x02
	UTFTypeInt16  = 0x03
	UTFTypeUint32 = 0x04
	UTFTypeInt32  = 0x05
	UTFTypeUint64 = 0x06
	UTFTypeInt64  = 0x07
	UTFTypeFloat  = 0x08
	UTFTypeString = 0x0A
	UTFTypeData   = 0x0B
)

const (
	utfHeaderSize = 0x20
	utfNullString = "<NULL>"
)

// UTFTable is a decoded CRI @UTF table. Cell values are uint8, int8, uint16,
// int16, uint32, int32, uint64, int64, float32, string or []byte; columns with
// zero storage have nil cells.
type UTFTable struct {
	Name    string
	Columns []UTFColumn
	Rows    [][]any
}

// UTFColumn describes a column of a UTFTable.
type UTFColumn struct {
	Name    string
	Storage uint8
	Type    uint8
	Const   any // value of a UTFStorageConst column
}

func utfTypeSize(typ uint8) int {
	switch typ {
	case UTFTypeUint8, UTFTypeInt8:
		return 1
	case UTFTypeUint16, UTFTypeInt16:
		return 2
	case UTFTypeUint32, UTFTypeInt32, UTFTypeFloat, UTFTypeString:
		return 4
	case UTFTypeUint64, UTFTypeInt64, UTFTypeData:
		return 8
	}
	return -1
}

// DecryptUTF returns a copy of b with the CRI table XOR mask removed.
func DecryptUTF(b []byte) []byte {
	out := make([]byte, len(b))
	m, t := uint32(0x0000655F), uint32(0x00004115)
	for i, c := range b {
		out[i] = c ^ byte(m)
		m *= t
	}
	return out
}

// ParseUTF decodes a @UTF table, decrypting it first if necessary.
func ParseUTF(b []byte) (*UTFTable, error) {
	if len(b) >= 4 && string(b[:4]) != UTFMagic {
		b = DecryptUTF(b)
	}
	if len(b) < utfHeaderSize {
		return nil, fmt.Errorf("%w: table is %d bytes", ErrInvalidTable, len(b))
	}
	if string(b[:4]) != UTFMagic {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidTable, UTFMagic, b[:4])
	}
	be := binary.BigEndian

	size := uint64(be.Uint32(b[4:])) + 8
	if size > uint64(len(b)) || size < utfHeaderSize {
		return nil, fmt.Errorf("%w: table size %d exceeds %d bytes", ErrInvalidTable, size, len(b))
	}
	b = b[:size]

	var (
		rowsOffset    = uint64(be.Uint32(b[8:])) + 8
		stringsOffset = uint64(be.Uint32(b[12:])) + 8
		dataOffset    = uint64(be.Uint32(b[16:])) + 8
		nameOffset    = be.Uint32(b[20:])
		numColumns    = int(be.Uint16(b[24:]))
		rowLength     = uint64(be.Uint16(b[26:]))
		numRows       = uint64(be.Uint32(b[28:]))
	)
	if numRows > MaxEntries {
		return nil, fmt.Errorf("%w: %d rows", ErrTooManyEntries, numRows)
	}
	if rowsOffset > size || stringsOffset > size || dataOffset > size || rowsOffset+rowLength*numRows > size {
		return nil, fmt.Errorf("%w: section offsets exceed table size %d", ErrInvalidTable, size)
	}
	u := &utfReader{b: b, strings: b[stringsOffset:], data: b[dataOffset:]}
	if dataOffset > stringsOffset {
		u.strings = b[stringsOffset:dataOffset]
	}

	t := &UTFTable{Columns: make([]UTFColumn, numColumns)}
	var err error
	if t.Name, err = u.string(nameOffset); err != nil {
		return nil, fmt.Errorf("read utf table name: %w", err)
	}

	p := uint64(utfHeaderSize)
	var perRow int
	for i := range t.Columns {
		if p+5 > rowsOffset {
			return nil, fmt.Errorf("%w: column %d overruns the column table", ErrInvalidTable, i)
		}
		flags := b[p]
		c := &t.Columns[i]
		c.Storage, c.Type = flags&UTFStorageMask, flags&UTFTypeMask
		if c.Name, err = u.string(be.Uint32(b[p+1:])); err != nil {
			return nil, fmt.Errorf("read utf column %d name: %w", i, err)
		}
		p += 5
		if utfTypeSize(c.Type) < 0 {
			return nil, fmt.Errorf("%w: column %q has unknown type %#x", ErrInvalidTable, c.Name, c.Type)
		}
		switch c.Storage {
		case UTFStorageNone, UTFStorageZero:
		case UTFStorageConst:
			v, n, err := u.value(p, c.Type)
			if err != nil {
				return nil, fmt.Errorf("read utf column %q constant: %w", c.Name, err)
			}
			c.Const = v
			p += uint64(n)
		case UTFStoragePerRow:
			perRow += utfTypeSize(c.Type)
		default:
			return nil, fmt.Errorf("%w: column %q has unknown storage %#x", ErrInvalidTable, c.Name, c.Storage)
		}
	}
	if uint64(perRow) > rowLength {
		return nil, fmt.Errorf("%w: columns need %d bytes per row, rows are %d", ErrInvalidTable, perRow, rowLength)
	}

	t.Rows = make([][]any, numRows)
	for r := range t.Rows {
		row := make([]any, numColumns)
		q := rowsOffset + uint64(r)*rowLength
		for i, c := range t.Columns {
			switch c.Storage {
			case UTFStorageConst:
				row[i] = c.Const
			case UTFStoragePerRow:
				v, n, err := u.value(q, c.Type)
				if err != nil {
					return nil, fmt.Errorf("read utf row %d column %q: %w", r, c.Name, err)
				}
				row[i] = v
				q += uint64(n)
			}
		}
		t.Rows[r] = row
	}
	return t, nil
}

type utfReader struct {
	b       []byte
	strings []byte
	data    []byte
}

func (u *utfReader) string(off uint32) (string, error) {
	if uint64(off) >= uint64(len(u.strings)) {
		return "", fmt.Errorf("%w: string offset %d exceeds string table", ErrInvalidTable, off)
	}
	s := u.strings[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}

func (u *utfReader) value(p uint64, typ uint8) (any, int, error) {
	n := utfTypeSize(typ)
	if p+uint64(n) > uint64(len(u.b)) {
		return nil, 0, fmt.Errorf("%w: value at %d overruns the table", ErrInvalidTable, p)
	}
	b := u.b[p:]
	be := binary.BigEndian
	switch typ {
	case UTFTypeUint8:
		return b[0], n, nil
	case UTFTypeInt8:
		return int8(b[0]), n, nil
	case UTFTypeUint16:
		return be.Uint16(b), n, nil
	case UTFTypeInt16:
		return int16(be.Uint16(b)), n, nil
	case UTFTypeUint32:
		return be.Uint32(b), n, nil
	case UTFTypeInt32:
		return int32(be.Uint32(b)), n, nil
	case UTFTypeUint64:
		return be.Uint64(b), n, nil
	case UTFTypeInt64:
		return int64(be.Uint64(b)), n, nil
	case UTFTypeFloat:
		return math.Float32frombits(be.Uint32(b)), n, nil
	case UTFTypeString:
		s, err := u.string(be.Uint32(b))
		return s, n, err
	case UTFTypeData:
		off, sz := uint64(be.Uint32(b)), uint64(be.Uint32(b[4:]))
		if off+sz > uint64(len(u.data)) {
			return nil, 0, fmt.Errorf("%w: data at %d (%d bytes) exceeds data area", ErrInvalidTable, off, sz)
		}
		return bytes.Clone(u.data[off : off+sz]), n, nil
	}
	return nil, 0, fmt.Errorf("%w: unknown type %#x", ErrInvalidTable, typ)
}

// Column returns the index of the named column, or -1.
func (t *UTFTable) Column(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row in the named column, or nil.
func (t *UTFTable) Value(row int, name string) any {
	i := t.Column(name)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][i]
}

// Uint returns an integer cell as a uint64. Missing and non-integer cells are
// zero.
func (t *UTFTable) Uint(row int, name string) uint64 {
	v, _ := utfUint(t.Value(row, name))
	return v
}

// String returns a string cell. Missing cells and the "<NULL>" placeholder are
// empty.
func (t *UTFTable) String(row int, name string) string {
	if s, ok := t.Value(row, name).(string); ok && s != utfNullString {
		return s
	}
	return ""
}

// AddRow appends a row. Values for non-per-row columns are ignored.
func (t *UTFTable) AddRow(values ...any) {
	row := make([]any, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

func utfUint(v any) (uint64, bool) {
	switch v := v.(type) {
	case uint8:
		return uint64(v), true
	case int8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case int16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case int32:
		return uint64(v), true
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case int:
		return uint64(v), true
	case uint:
		return uint64(v), true
	}
	return 0, false
}

type utfWriter struct {
	strings bytes.Buffer
	offsets map[string]uint32
	data    bytes.Buffer
}

func (w *utfWriter) string(s string) uint32 {
	if off, ok := w.offsets[s]; ok {
		return off
	}
	off := uint32(w.strings.Len())
	w.strings.WriteString(s)
	w.strings.WriteByte(0)
	w.offsets[s] = off
	return off
}

func (w *utfWriter) value(buf *bytes.Buffer, typ uint8, v any) error {
	switch typ {
	case UTFTypeFloat:
		f, ok := v.(float32)
		if !ok && v != nil {
			return fmt.Errorf("%w: expected float32, got %T", ErrInvalidTable, v)
		}
		return binio.WriteFloat32BE(buf, f)
	case UTFTypeString:
		s, ok := v.(string)
		if !ok && v != nil {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalidTable, v)
		}
		if s == "" {
			s = utfNullString
		}
		return binio.WriteUint32BE(buf, w.string(s))
	case UTFTypeData:
		d, ok := v.([]byte)
		if !ok && v != nil {
			return fmt.Errorf("%w: expected []byte, got %T", ErrInvalidTable, v)
		}
		if err := binio.WriteUint32BE(buf, uint32(w.data.Len())); err != nil {
			return err
		}
		w.data.Write(d)
		return binio.WriteUint32BE(buf, uint32(len(d)))
	default:
		n, ok := utfUint(v)
		if !ok && v != nil {
			return fmt.Errorf("%w: expected integer, got %T", ErrInvalidTable, v)
		}
		return binio.WriteIntXBE(buf, n, utfTypeSize(typ))
	}
}

// Encode encodes the table (unencrypted).
func (t *UTFTable) Encode() ([]byte, error) {
	w := &utfWriter{offsets: map[string]uint32{}}
	w.string(utfNullString)
	nameOffset := w.string(t.Name)

	var schema bytes.Buffer
	var rowLength int
	for _, c := range t.Columns {
		if utfTypeSize(c.Type) < 0 {
			return nil, fmt.Errorf("%w: column %q has unknown type %#x", ErrInvalidTable, c.Name, c.Type)
		}
		schema.WriteByte(c.Storage&UTFStorageMask | c.Type&UTFTypeMask)
		binio.WriteUint32BE(&schema, w.string(c.Name))
		switch c.Storage {
		case UTFStorageConst:
			if err := w.value(&schema, c.Type, c.Const); err != nil {
				return nil, fmt.Errorf("encode utf column %q constant: %w", c.Name, err)
			}
		case UTFStoragePerRow:
			rowLength += utfTypeSize(c.Type)
		}
	}
	if rowLength > 0xFFFF || len(t.Columns) > 0xFFFF {
		return nil, fmt.Errorf("%w: too many columns", ErrInvalidTable)
	}

	var rows bytes.Buffer
	for r, row := range t.Rows {
		for i, c := range t.Columns {
			if c.Storage != UTFStoragePerRow {
				continue
			}
			var v any
			if i < len(row) {
				v = row[i]
			}
			if err := w.value(&rows, c.Type, v); err != nil {
				return nil, fmt.Errorf("encode utf row %d column %q: %w", r, c.Name, err)
			}
		}
	}

	rowsOffset := utfHeaderSize + schema.Len()
	stringsOffset := rowsOffset + rows.Len()
	dataOffset := int(binio.Align(int64(stringsOffset+w.strings.Len()), 8))
	size := int(binio.Align(int64(dataOffset+w.data.Len()), 8))

	var out bytes.Buffer
	out.Grow(size)
	out.WriteString(UTFMagic)
	binio.WriteUint32BE(&out, uint32(size-8))
	binio.WriteUint32BE(&out, uint32(rowsOffset-8))
	binio.WriteUint32BE(&out, uint32(stringsOffset-8))
	binio.WriteUint32BE(&out, uint32(dataOffset-8))
	binio.WriteUint32BE(&out, nameOffset)
	binio.WriteUint16BE(&out, uint16(len(t.Columns)))
	binio.WriteUint16BE(&out, uint16(rowLength))
	binio.WriteUint32BE(&out, uint32(len(t.Rows)))
	out.Write(schema.Bytes())
	out.Write(rows.Bytes())
	out.Write(w.strings.Bytes())
	binio.WritePadding(&out, int64(dataOffset-out.Len()))
	out.Write(w.data.Bytes())
	binio.WritePadding(&out, int64(size-out.Len()))
	return out.Bytes(), nil
}
