package core

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    LedColor
		wantErr bool
	}{
		{in: "#000000", want: RGB(0, 0, 0)},
		{in: "#ff7f00", want: RGB(255, 127, 0)},
		{in: "#0a0b0c", want: RGB(10, 11, 12)},
		{in: "", wantErr: true},
		{in: "ff7f00", wantErr: true},
		{in: "#ff7f0", wantErr: true},
		{in: "#ff7f000", wantErr: true},
		{in: "#gg0000", wantErr: true},
		{in: "#FF7F00", wantErr: true},
		{in: "x123456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidHex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColorJSON(t *testing.T) {
	b, err := json.Marshal(RGB(1, 2, 255))
	require.NoError(t, err)
	assert.JSONEq(t, `"#0102ff"`, string(b))

	var c LedColor
	require.NoError(t, json.Unmarshal([]byte(`"#abcdef"`), &c))
	assert.Equal(t, RGB(0xab, 0xcd, 0xef), c)

	assert.Error(t, json.Unmarshal([]byte(`"#abcde"`), &c))
	assert.Error(t, json.Unmarshal([]byte(`123`), &c))
}

func TestScale(t *testing.T) {
	c := RGB(200, 100, 50)
	assert.Equal(t, c, c.Scale(255))
	assert.Equal(t, RGB(0, 0, 0), c.Scale(0))
	assert.Equal(t, RGB(100, 50, 25), c.Scale(128))
}

func TestColorRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := LedColor{
			R: rapid.Uint8().Draw(t, "r"),
			G: rapid.Uint8().Draw(t, "g"),
			B: rapid.Uint8().Draw(t, "b"),
		}
		got, err := ParseHex(c.Hex())
		if err != nil {
			t.Fatalf("parse %q: %v", c.Hex(), err)
		}
		if got != c {
			t.Fatalf("round trip: got %v want %v", got, c)
		}
	})
}

var canonicalHex = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestParseHexRejectsNonCanonical(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		_, err := ParseHex(s)
		if canonicalHex.MatchString(s) {
			if err != nil {
				t.Fatalf("rejected canonical %q: %v", s, err)
			}
			return
		}
		if err == nil {
			t.Fatalf("accepted %q", s)
		}
	})
}
