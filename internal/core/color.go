package core

import (
	"errors"
	"fmt"
)

// ErrInvalidHex is returned when a color string is not of the form #rrggbb.
var ErrInvalidHex = errors.New("hex code not of form #rrggbb")

// LedColor is the color of a single pixel.
type LedColor struct {
	R, G, B uint8
}

// RGB is a shorthand constructor for LedColor.
func RGB(r, g, b uint8) LedColor {
	return LedColor{R: r, G: g, B: b}
}

// Hex returns the canonical lowercase wire form, e.g. "#ff7f00".
func (c LedColor) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c LedColor) String() string {
	return c.Hex()
}

// Scale dims the color by brightness/255.
func (c LedColor) Scale(brightness uint8) LedColor {
	if brightness == 255 {
		return c
	}
	s := uint16(brightness)
	return LedColor{
		R: uint8(uint16(c.R) * s / 255),
		G: uint8(uint16(c.G) * s / 255),
		B: uint8(uint16(c.B) * s / 255),
	}
}

// ParseHex decodes a 7 character "#rrggbb" string. Only lowercase hex digits
// are accepted since Hex never produces anything else.
func ParseHex(s string) (LedColor, error) {
	if len(s) != 7 || s[0] != '#' {
		return LedColor{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[1+2*i])
		lo, ok2 := hexNibble(s[2+2*i])
		if !ok1 || !ok2 {
			return LedColor{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
		}
		rgb[i] = hi<<4 | lo
	}
	return LedColor{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// MarshalText makes LedColor encode as "#rrggbb" in JSON and TOML.
func (c LedColor) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *LedColor) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
