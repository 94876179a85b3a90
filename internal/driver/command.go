package driver

import (
	"fmt"

	"lights-controller/internal/core"
)

// Command describes a desired end state of the buffer. Modes produce
// commands; only the orchestrator applies them. A nil Command means nothing
// to do.
type Command interface {
	isCommand()
}

type Clear struct{}

type Fill struct{ Color core.LedColor }

// SetAll replaces every pixel. Colors must hold exactly one entry per pixel,
// in logical order.
type SetAll struct{ Colors []core.LedColor }

// SetSome changes only the listed pixels.
type SetSome struct{ Pixels []Pixel }

type Pixel struct {
	Index int
	Color core.LedColor
}

func (Clear) isCommand()   {}
func (Fill) isCommand()    {}
func (SetAll) isCommand()  {}
func (SetSome) isCommand() {}

// Name is used for log fields.
func Name(cmd Command) string {
	switch cmd.(type) {
	case nil:
		return "none"
	case Clear:
		return "clear"
	case Fill:
		return "fill"
	case SetAll:
		return "setAll"
	case SetSome:
		return "setSome"
	}
	return fmt.Sprintf("%T", cmd)
}

// Apply executes cmd and renders once. Commands that do not fit the buffer
// are rejected before anything is written.
func (d *Driver) Apply(cmd Command) error {
	switch c := cmd.(type) {
	case nil:
		return nil
	case Clear:
		return d.Clear()
	case Fill:
		return d.Fill(c.Color)
	case SetAll:
		if len(c.Colors) != d.Len() {
			return fmt.Errorf("%w: got %d colors for %d pixels", ErrLengthMismatch, len(c.Colors), d.Len())
		}
		for i, px := range d.All() {
			*px = c.Colors[i]
		}
		return d.Render()
	case SetSome:
		for _, p := range c.Pixels {
			if _, _, ok := Locate(d.cfg, p.Index); !ok {
				return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, p.Index, d.Len())
			}
		}
		for _, p := range c.Pixels {
			d.Set(p.Index, p.Color)
		}
		return d.Render()
	}
	return fmt.Errorf("unknown driver command %T", cmd)
}
