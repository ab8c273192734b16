package lin

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spiral-tools/spiral/binio"
)

// Decode decodes the instructions in b using t. NUL padding between
// instructions is skipped.
func Decode(t *OpCodeTable, b []byte) ([]Instruction, error) {
	var ins []Instruction
	for p := 0; p < len(b); {
		switch b[p] {
		case 0x00:
			p++
			continue
		case Marker:
		default:
			return ins, fmt.Errorf("%w: 0x%02X at offset %d", ErrUnexpectedByte, b[p], p)
		}
		if p+1 >= len(b) {
			return ins, fmt.Errorf("%w: marker at offset %d has no opcode", binio.ErrTruncatedInput, p)
		}
		op, start := int(b[p+1]), p
		p += 2

		arity := Variable
		if o, ok := t.Lookup(op); ok {
			arity = o.Arity
		}

		var args []int
		if arity == Variable {
			n := bytes.IndexByte(b[p:], Marker)
			if n < 0 {
				n = len(b) - p
			}
			args = make([]int, n)
			for i := range args {
				args[i] = int(b[p+i])
			}
			p += n
		} else {
			if p+arity > len(b) {
				return ins, fmt.Errorf("%w: opcode 0x%02X at offset %d needs %d arguments, %d bytes left", binio.ErrTruncatedInput, op, start, arity, len(b)-p)
			}
			args = make([]int, arity)
			for i := range args {
				args[i] = int(b[p+i])
			}
			p += arity
		}

		in, err := t.Decode(op, args)
		if err != nil {
			return ins, fmt.Errorf("decode opcode 0x%02X at offset %d: %w", op, start, err)
		}
		ins = append(ins, in)
	}
	return ins, nil
}

// Encode encodes instructions, checking each against t. Opcodes unknown to t
// are written as-is.
func Encode(t *OpCodeTable, ins []Instruction) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, t, ins); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo is like Encode, but writes to w.
func EncodeTo(w io.Writer, t *OpCodeTable, ins []Instruction) error {
	for i, in := range ins {
		b, err := encodeInstruction(t, in)
		if err != nil {
			return fmt.Errorf("encode instruction %d (%s): %w", i, in.Format(), err)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func encodeInstruction(t *OpCodeTable, in Instruction) ([]byte, error) {
	op, args := in.OpCode(), in.RawArguments()
	if op < 0 || op > 0xFF {
		return nil, fmt.Errorf("%w: opcode %d", ErrArgumentRange, op)
	}

	variable := true
	if o, ok := t.Lookup(op); ok && o.Arity != Variable {
		if len(args) != o.Arity {
			return nil, fmt.Errorf("%w: %s (0x%02X) takes %d arguments, got %d", ErrArityMismatch, o.Name, op, o.Arity, len(args))
		}
		variable = false
	}

	b := make([]byte, 0, 2+len(args))
	b = append(b, Marker, byte(op))
	for _, a := range args {
		if a < 0 || a > 0xFF {
			return nil, fmt.Errorf("%w: argument %d", ErrArgumentRange, a)
		}
		if variable && a == Marker {
			return nil, fmt.Errorf("%w: variable-length arguments cannot contain 0x%02X", ErrArgumentRange, Marker)
		}
		b = append(b, byte(a))
	}
	return b, nil
}
