// Package lin decodes and encodes LIN script bytecode.
//
// A script is a flat sequence of instructions, each a 0x70 marker byte, an
// opcode byte and its arguments (one byte each). The opcode table of the game
// the script belongs to determines what each opcode means and how many
// arguments it takes; the wire shape is the same for every game.
package lin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Marker precedes every instruction.
const Marker = 0x70

var (
	// ErrArityMismatch is returned when an instruction has the wrong number of
	// arguments for its opcode.
	ErrArityMismatch = errors.New("argument count does not match opcode arity")

	// ErrArgumentRange is returned when an argument does not fit in a byte, or
	// when a variable-length argument list contains the marker byte.
	ErrArgumentRange = errors.New("argument out of range")

	// ErrInvalidHeader is returned when a LIN file header is inconsistent.
	ErrInvalidHeader = errors.New("invalid lin header")

	// ErrUnexpectedByte is returned when a byte other than NUL padding is
	// found between instructions.
	ErrUnexpectedByte = errors.New("unexpected byte between instructions")
)

// Instruction is a single decoded script instruction.
type Instruction interface {
	OpCode() int
	RawArguments() []int
	Format() string
}

func formatArgs(name string, args ...int) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')
	for i, a := range args {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(a))
	}
	return b.String()
}

// Generic is an instruction known to the opcode table without a dedicated
// type.
type Generic struct {
	Op   int
	Name string
	Args []int
}

func (g Generic) OpCode() int         { return g.Op }
func (g Generic) RawArguments() []int { return g.Args }
func (g Generic) Format() string      { return formatArgs(g.Name, g.Args...) }

// Unknown is an instruction whose opcode is not in the opcode table. Its
// arguments are everything up to the next marker.
type Unknown struct {
	Op   int
	Args []int
}

func (u Unknown) OpCode() int         { return u.Op }
func (u Unknown) RawArguments() []int { return u.Args }
func (u Unknown) Format() string      { return formatArgs(fmt.Sprintf("0x%02X", u.Op), u.Args...) }

// TextCount declares the number of strings in the script.
type TextCount struct {
	Count int
}

func (t TextCount) OpCode() int         { return 0x00 }
func (t TextCount) RawArguments() []int { return []int{t.Count & 0xFF, t.Count >> 8 & 0xFF} }
func (t TextCount) Format() string      { return formatArgs("Text Count", t.Count) }

// Text displays a string from the script's text block.
type Text struct {
	ID int
}

func (t Text) OpCode() int         { return 0x02 }
func (t Text) RawArguments() []int { return []int{t.ID >> 8 & 0xFF, t.ID & 0xFF} }
func (t Text) Format() string      { return formatArgs("Text", t.ID) }

// TextFormat sets the style of the following text.
type TextFormat struct {
	Style int
}

func (t TextFormat) OpCode() int         { return 0x03 }
func (t TextFormat) RawArguments() []int { return []int{t.Style} }
func (t TextFormat) Format() string      { return formatArgs("Format", t.Style) }

// Movie plays a movie.
type Movie struct {
	ID    int
	State int
}

func (m Movie) OpCode() int         { return 0x05 }
func (m Movie) RawArguments() []int { return []int{m.ID, m.State} }
func (m Movie) Format() string      { return formatArgs("Movie", m.ID, m.State) }

// Animation plays an animation or flash resource.
type Animation struct {
	ID        int
	Arguments [5]int
	Frame     int
}

func (a Animation) OpCode() int { return 0x06 }

func (a Animation) RawArguments() []int {
	return append(append([]int{a.ID >> 8 & 0xFF, a.ID & 0xFF}, a.Arguments[:]...), a.Frame)
}

func (a Animation) Format() string {
	return formatArgs("Animation", append(append([]int{a.ID}, a.Arguments[:]...), a.Frame)...)
}

// Voice plays a voice line.
type Voice struct {
	Character int
	Chapter   int
	ID        int
	Volume    int
}

func (v Voice) OpCode() int { return 0x08 }

func (v Voice) RawArguments() []int {
	return []int{v.Character, v.Chapter, v.ID >> 8 & 0xFF, v.ID & 0xFF, v.Volume}
}

func (v Voice) Format() string {
	return formatArgs("Voice Line", v.Character, v.Chapter, v.ID, v.Volume)
}

// Music plays a background music track.
type Music struct {
	ID      int
	Volume  int
	Unknown int
}

func (m Music) OpCode() int         { return 0x09 }
func (m Music) RawArguments() []int { return []int{m.ID, m.Volume, m.Unknown} }
func (m Music) Format() string      { return formatArgs("Music", m.ID, m.Volume, m.Unknown) }

// SoundEffect plays a sound effect.
type SoundEffect struct {
	ID     int
	Volume int
}

func (s SoundEffect) OpCode() int         { return 0x0A }
func (s SoundEffect) RawArguments() []int { return []int{s.ID >> 8 & 0xFF, s.ID & 0xFF, s.Volume} }
func (s SoundEffect) Format() string      { return formatArgs("Sound Effect", s.ID, s.Volume) }

// Sprite shows a character sprite.
type Sprite struct {
	Object     int
	Character  int
	Sprite     int
	State      int
	Transition int
}

func (s Sprite) OpCode() int { return 0x1E }

func (s Sprite) RawArguments() []int {
	return []int{s.Object, s.Character, s.Sprite, s.State, s.Transition}
}

func (s Sprite) Format() string {
	return formatArgs("Sprite", s.Object, s.Character, s.Sprite, s.State, s.Transition)
}

// ScreenFlash flashes the screen with a colour.
type ScreenFlash struct {
	Red             int
	Green           int
	Blue            int
	FadeInDuration  int
	HoldDuration    int
	FadeOutDuration int
	Opacity         int
}

func (s ScreenFlash) OpCode() int { return 0x1F }

func (s ScreenFlash) RawArguments() []int {
	return []int{s.Red, s.Green, s.Blue, s.FadeInDuration, s.HoldDuration, s.FadeOutDuration, s.Opacity}
}

func (s ScreenFlash) Format() string {
	return fmt.Sprintf("Flash the screen rgb(%d, %d, %d) over %d frames, hold for %d frames, fade out over %d, with opacity %d",
		s.Red, s.Green, s.Blue, s.FadeInDuration, s.HoldDuration, s.FadeOutDuration, s.Opacity)
}

// Speaker sets the character shown as speaking.
type Speaker struct {
	Character int
}

func (s Speaker) OpCode() int         { return 0x21 }
func (s Speaker) RawArguments() []int { return []int{s.Character} }
func (s Speaker) Format() string      { return formatArgs("Speaker", s.Character) }

// ScreenFade fades the screen in or out.
type ScreenFade struct {
	FadeIn bool
	Colour int
	Frames int
}

func (s ScreenFade) OpCode() int { return 0x22 }

func (s ScreenFade) RawArguments() []int {
	in := 0
	if s.FadeIn {
		in = 1
	}
	return []int{in, s.Colour, s.Frames}
}

func (s ScreenFade) Format() string {
	return formatArgs("Screen Fade", s.RawArguments()...)
}

// ChangeUI changes the state of a UI element.
type ChangeUI struct {
	Element int
	State   int
}

func (c ChangeUI) OpCode() int         { return 0x25 }
func (c ChangeUI) RawArguments() []int { return []int{c.Element, c.State} }
func (c ChangeUI) Format() string      { return formatArgs("Change UI", c.Element, c.State) }

// SetFlag sets a game flag.
type SetFlag struct {
	Group int
	ID    int
	Value int
}

func (s SetFlag) OpCode() int         { return 0x26 }
func (s SetFlag) RawArguments() []int { return []int{s.Group, s.ID, s.Value} }
func (s SetFlag) Format() string      { return formatArgs("Set Flag", s.Group, s.ID, s.Value) }

// SetLabel defines a jump target.
type SetLabel struct {
	ID int
}

func (s SetLabel) OpCode() int         { return 0x2A }
func (s SetLabel) RawArguments() []int { return []int{s.ID >> 8 & 0xFF, s.ID & 0xFF} }
func (s SetLabel) Format() string      { return formatArgs("Set Label", s.ID) }

// Goto jumps to a label.
type Goto struct {
	Label int
}

func (g Goto) OpCode() int         { return 0x34 }
func (g Goto) RawArguments() []int { return []int{g.Label >> 8 & 0xFF, g.Label & 0xFF} }
func (g Goto) Format() string      { return formatArgs("Goto Label", g.Label) }

// CheckFlag starts a conditional block. Its arguments are a variable-length
// condition expression.
type CheckFlag struct {
	Op   int
	Args []int
}

func (c CheckFlag) OpCode() int         { return c.Op }
func (c CheckFlag) RawArguments() []int { return c.Args }
func (c CheckFlag) Format() string      { return formatArgs("Check Flag", c.Args...) }

// WaitForInput waits for the player to advance the text.
type WaitForInput struct {
	Op int
}

func (w WaitForInput) OpCode() int         { return w.Op }
func (w WaitForInput) RawArguments() []int { return []int{} }
func (w WaitForInput) Format() string      { return "Wait For Input|" }

// WaitFrame waits for a single frame.
type WaitFrame struct {
	Op int
}

func (w WaitFrame) OpCode() int         { return w.Op }
func (w WaitFrame) RawArguments() []int { return []int{} }
func (w WaitFrame) Format() string      { return "Wait Frame|" }

// EndFlagCheck ends a conditional block.
type EndFlagCheck struct {
	Op int
}

func (e EndFlagCheck) OpCode() int         { return e.Op }
func (e EndFlagCheck) RawArguments() []int { return []int{} }
func (e EndFlagCheck) Format() string      { return "End Flag Check|" }
