package lin

import (
	"fmt"
	"sort"
	"strings"
)

// Game selects an opcode table.
type Game string

// Known games.
const (
	GameDR1 Game = "dr1"
	GameDR2 Game = "dr2"
	GameUDG Game = "udg"
)

// Games lists the known games.
var Games = []Game{GameDR1, GameDR2, GameUDG}

// ParseGame parses a game name (case-insensitive).
func ParseGame(s string) (Game, error) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	for _, x := range Games {
		if x == g {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown game %q (expected one of %s)", s, strings.Join(gameNames(), ", "))
}

func gameNames() []string {
	s := make([]string, len(Games))
	for i, g := range Games {
		s[i] = string(g)
	}
	return s
}

// String implements pflag.Value.
func (g *Game) String() string {
	return string(*g)
}

// Set implements pflag.Value.
func (g *Game) Set(s string) error {
	v, err := ParseGame(s)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// Type implements pflag.Value.
func (g *Game) Type() string {
	return "game"
}

// Table returns the opcode table for g.
func (g Game) Table() (*OpCodeTable, error) {
	switch g {
	case GameDR1:
		return DR1, nil
	case GameDR2:
		return DR2, nil
	case GameUDG:
		return UDG, nil
	}
	return nil, fmt.Errorf("unknown game %q", string(g))
}

// Variable is the arity of opcodes whose arguments run up to the next marker.
const Variable = -1

// OpCode describes an opcode in a table.
type OpCode struct {
	Name  string
	Arity int

	// Decode builds a typed instruction from arguments of the correct arity.
	// If nil, the instruction decodes to Generic.
	Decode func(op int, args []int) (Instruction, error)
}

// OpCodeTable maps opcodes to their meaning for one game.
type OpCodeTable struct {
	Game Game
	ops  map[int]OpCode
}

// Lookup returns the OpCode for op.
func (t *OpCodeTable) Lookup(op int) (OpCode, bool) {
	o, ok := t.ops[op]
	return o, ok
}

// OpCodes returns the opcodes in the table in ascending order.
func (t *OpCodeTable) OpCodes() []int {
	ops := make([]int, 0, len(t.ops))
	for op := range t.ops {
		ops = append(ops, op)
	}
	sort.Ints(ops)
	return ops
}

// Decode builds the instruction for op and args. Unknown opcodes become
// Unknown; known ones must have the declared arity.
func (t *OpCodeTable) Decode(op int, args []int) (Instruction, error) {
	o, ok := t.ops[op]
	if !ok {
		return Unknown{Op: op, Args: args}, nil
	}
	if o.Arity != Variable && len(args) != o.Arity {
		return nil, fmt.Errorf("%w: %s (0x%02X) takes %d arguments, got %d", ErrArityMismatch, o.Name, op, o.Arity, len(args))
	}
	if o.Decode == nil {
		return Generic{Op: op, Name: o.Name, Args: args}, nil
	}
	return o.Decode(op, args)
}

// fixed wraps fn in an arity check.
func fixed(n int, fn func(op int, a []int) Instruction) func(int, []int) (Instruction, error) {
	return func(op int, args []int) (Instruction, error) {
		if len(args) != n {
			return nil, fmt.Errorf("%w: opcode 0x%02X takes %d arguments, got %d", ErrArityMismatch, op, n, len(args))
		}
		return fn(op, args), nil
	}
}

func be16(hi, lo int) int { return hi<<8 | lo }

var (
	decodeTextCount = fixed(2, func(_ int, a []int) Instruction { return TextCount{Count: be16(a[1], a[0])} })
	decodeText      = fixed(2, func(_ int, a []int) Instruction { return Text{ID: be16(a[0], a[1])} })
	decodeFormat    = fixed(1, func(_ int, a []int) Instruction { return TextFormat{Style: a[0]} })
	decodeMovie     = fixed(2, func(_ int, a []int) Instruction { return Movie{ID: a[0], State: a[1]} })
	decodeAnimation = fixed(8, func(_ int, a []int) Instruction {
		return Animation{ID: be16(a[0], a[1]), Arguments: [5]int{a[2], a[3], a[4], a[5], a[6]}, Frame: a[7]}
	})
	decodeVoice = fixed(5, func(_ int, a []int) Instruction {
		return Voice{Character: a[0], Chapter: a[1], ID: be16(a[2], a[3]), Volume: a[4]}
	})
	decodeMusic       = fixed(3, func(_ int, a []int) Instruction { return Music{ID: a[0], Volume: a[1], Unknown: a[2]} })
	decodeSoundEffect = fixed(3, func(_ int, a []int) Instruction { return SoundEffect{ID: be16(a[0], a[1]), Volume: a[2]} })
	decodeSprite      = fixed(5, func(_ int, a []int) Instruction {
		return Sprite{Object: a[0], Character: a[1], Sprite: a[2], State: a[3], Transition: a[4]}
	})
	decodeScreenFlash = fixed(7, func(_ int, a []int) Instruction {
		return ScreenFlash{Red: a[0], Green: a[1], Blue: a[2], FadeInDuration: a[3], HoldDuration: a[4], FadeOutDuration: a[5], Opacity: a[6]}
	})
	decodeSpeaker    = fixed(1, func(_ int, a []int) Instruction { return Speaker{Character: a[0]} })
	decodeScreenFade = fixed(3, func(_ int, a []int) Instruction { return ScreenFade{FadeIn: a[0] == 1, Colour: a[1], Frames: a[2]} })
	decodeChangeUI   = fixed(2, func(_ int, a []int) Instruction { return ChangeUI{Element: a[0], State: a[1]} })
	decodeSetFlag    = fixed(3, func(_ int, a []int) Instruction { return SetFlag{Group: a[0], ID: a[1], Value: a[2]} })
	decodeSetLabel   = fixed(2, func(_ int, a []int) Instruction { return SetLabel{ID: be16(a[0], a[1])} })
	decodeGoto       = fixed(2, func(_ int, a []int) Instruction { return Goto{Label: be16(a[0], a[1])} })

	decodeWaitForInput = fixed(0, func(op int, _ []int) Instruction { return WaitForInput{Op: op} })
	decodeWaitFrame    = fixed(0, func(op int, _ []int) Instruction { return WaitFrame{Op: op} })
	decodeEndFlagCheck = fixed(0, func(op int, _ []int) Instruction { return EndFlagCheck{Op: op} })
)

func decodeCheckFlag(op int, args []int) (Instruction, error) {
	return CheckFlag{Op: op, Args: args}, nil
}

// DR1 is the opcode table of Danganronpa: Trigger Happy Havoc.
var DR1 = &OpCodeTable{Game: GameDR1, ops: map[int]OpCode{
	0x00: {"Text Count", 2, decodeTextCount},
	0x01: {"0x01", 3, nil},
	0x02: {"Text", 2, decodeText},
	0x03: {"Format", 1, decodeFormat},
	0x04: {"Filter", 4, nil},
	0x05: {"Movie", 2, decodeMovie},
	0x06: {"Animation", 8, decodeAnimation},
	0x07: {"0x07", Variable, nil},
	0x08: {"Voice Line", 5, decodeVoice},
	0x09: {"Music", 3, decodeMusic},
	0x0A: {"Sound Effect A", 3, decodeSoundEffect},
	0x0B: {"Sound Effect B", 2, nil},
	0x0C: {"Truth Bullet", 2, nil},
	0x0D: {"0x0D", 3, nil},
	0x0E: {"0x0E", 2, nil},
	0x0F: {"Set Title", 3, nil},
	0x10: {"Set Report Info", 3, nil},
	0x11: {"0x11", 4, nil},
	0x14: {"Trial Camera", 3, nil},
	0x15: {"Load Map", 3, nil},
	0x19: {"Load Script", 3, nil},
	0x1A: {"Stop Script", 0, nil},
	0x1B: {"Run Script", 3, nil},
	0x1C: {"0x1C", 0, nil},
	0x1E: {"Sprite", 5, decodeSprite},
	0x1F: {"Screen Flash", 7, decodeScreenFlash},
	0x20: {"0x20", 5, nil},
	0x21: {"Speaker", 1, decodeSpeaker},
	0x22: {"Screen Fade", 3, decodeScreenFade},
	0x23: {"Object State", 5, nil},
	0x24: {"0x24", 2, nil},
	0x25: {"Change UI", 2, decodeChangeUI},
	0x26: {"Set Flag", 3, decodeSetFlag},
	0x27: {"Check Character", 1, nil},
	0x29: {"Check Object", 1, nil},
	0x2A: {"Set Label", 2, decodeSetLabel},
	0x2B: {"Choice", 1, nil},
	0x2C: {"0x2C", 2, nil},
	0x2E: {"0x2E", 2, nil},
	0x2F: {"0x2F", 10, nil},
	0x30: {"Show Background", 3, nil},
	0x32: {"0x32", 1, nil},
	0x33: {"0x33", 4, nil},
	0x34: {"Goto Label", 2, decodeGoto},
	0x35: {"Check Flag A", Variable, decodeCheckFlag},
	0x36: {"Check Flag B", Variable, decodeCheckFlag},
	0x38: {"0x38", Variable, nil},
	0x39: {"0x39", 5, nil},
	0x3A: {"Wait For Input", 0, decodeWaitForInput},
	0x3B: {"Wait Frame", 0, decodeWaitFrame},
	0x3C: {"End Flag Check", 0, decodeEndFlagCheck},
}}

// DR2 is the opcode table of Danganronpa 2: Goodbye Despair.
var DR2 = &OpCodeTable{Game: GameDR2, ops: map[int]OpCode{
	0x00: {"Text Count", 2, decodeTextCount},
	0x01: {"0x01", 4, nil},
	0x02: {"Text", 2, decodeText},
	0x03: {"Format", 1, decodeFormat},
	0x04: {"Filter", 4, nil},
	0x05: {"Movie", 2, decodeMovie},
	0x06: {"Animation", 8, decodeAnimation},
	0x07: {"0x07", Variable, nil},
	0x08: {"Voice Line", 5, decodeVoice},
	0x09: {"Music", 3, decodeMusic},
	0x0A: {"Sound Effect A", 3, decodeSoundEffect},
	0x0B: {"Sound Effect B", 2, nil},
	0x0C: {"Truth Bullet", 3, nil},
	0x0D: {"0x0D", 3, nil},
	0x0E: {"0x0E", 2, nil},
	0x0F: {"Set Title", 3, nil},
	0x10: {"Set Report Info", 3, nil},
	0x11: {"0x11", 4, nil},
	0x14: {"Trial Camera", 6, nil},
	0x15: {"Load Map", 4, nil},
	0x19: {"Load Script", 5, nil},
	0x1A: {"Stop Script", 0, nil},
	0x1B: {"Run Script", 5, nil},
	0x1C: {"0x1C", 0, nil},
	0x1E: {"Sprite", 5, decodeSprite},
	0x1F: {"Screen Flash", 7, decodeScreenFlash},
	0x20: {"0x20", 5, nil},
	0x21: {"Speaker", 1, decodeSpeaker},
	0x22: {"Screen Fade", 3, decodeScreenFade},
	0x23: {"Object State", 5, nil},
	0x24: {"0x24", 2, nil},
	0x25: {"Change UI", 2, decodeChangeUI},
	0x26: {"Set Flag", 3, decodeSetFlag},
	0x27: {"Check Character", 1, nil},
	0x29: {"Check Object", 1, nil},
	0x2A: {"Set Label", 2, decodeSetLabel},
	0x2B: {"Choice", 1, nil},
	0x2C: {"0x2C", 2, nil},
	0x2E: {"0x2E", 5, nil},
	0x2F: {"0x2F", 10, nil},
	0x30: {"Show Background", 3, nil},
	0x32: {"0x32", 1, nil},
	0x33: {"0x33", 4, nil},
	0x34: {"Goto Label", 2, decodeGoto},
	0x35: {"Check Flag A", Variable, decodeCheckFlag},
	0x36: {"Check Flag B", Variable, decodeCheckFlag},
	0x38: {"0x38", Variable, nil},
	0x39: {"0x39", 5, nil},
	0x3A: {"Set Game Parameter", 4, nil},
	0x3B: {"0x3B", 2, nil},
	0x3C: {"End Flag Check", 0, decodeEndFlagCheck},
	0x4B: {"Wait For Input", 0, decodeWaitForInput},
	0x4C: {"Wait Frame", 0, decodeWaitFrame},
}}

// UDG is the opcode table of Danganronpa Another Episode: Ultra Despair
// Girls. Only the opcodes shared with the main games are mapped; everything
// else decodes as Unknown.
var UDG = &OpCodeTable{Game: GameUDG, ops: map[int]OpCode{
	0x0C: {"Wait For Input", 0, decodeWaitForInput},
}}
