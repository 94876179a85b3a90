package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lights-controller/internal/core"
)

var (
	red   = core.RGB(255, 0, 0)
	green = core.RGB(0, 255, 0)
	blue  = core.RGB(0, 0, 255)
	white = core.RGB(255, 255, 255)
)

func newSim(t *testing.T, left, right int) (*Driver, *SimOutput, *SimOutput) {
	t.Helper()
	b := NewSimBackend()
	d, err := New(core.DriverConfig{Left: left, Right: right, Brightness: 255}, b)
	require.NoError(t, err)
	l, r := b.Current()
	return d, l, r
}

func TestLocate(t *testing.T) {
	cfg := core.DriverConfig{Left: 3, Right: 2}
	tests := []struct {
		i        int
		seg, pos int
		ok       bool
	}{
		{i: 0, seg: Left, pos: 2, ok: true},
		{i: 1, seg: Left, pos: 1, ok: true},
		{i: 2, seg: Left, pos: 0, ok: true},
		{i: 3, seg: Right, pos: 0, ok: true},
		{i: 4, seg: Right, pos: 1, ok: true},
		{i: 5},
		{i: -1},
	}
	for _, tt := range tests {
		seg, pos, ok := Locate(cfg, tt.i)
		assert.Equal(t, tt.ok, ok, "index %d", tt.i)
		if tt.ok {
			assert.Equal(t, tt.seg, seg, "index %d", tt.i)
			assert.Equal(t, tt.pos, pos, "index %d", tt.i)
		}
	}
}

func TestLocateIsBijective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := core.DriverConfig{
			Left:  rapid.IntRange(0, 64).Draw(t, "left"),
			Right: rapid.IntRange(0, 64).Draw(t, "right"),
		}
		seen := make(map[[2]int]int)
		for i := range cfg.Len() {
			seg, slot, ok := Locate(cfg, i)
			if !ok {
				t.Fatalf("index %d rejected for %s", i, cfg)
			}
			if seg == Left && slot != cfg.Left-1-i {
				t.Fatalf("left index %d -> slot %d", i, slot)
			}
			if seg == Right && slot != i-cfg.Left {
				t.Fatalf("right index %d -> slot %d", i, slot)
			}
			if prev, dup := seen[[2]int{seg, slot}]; dup {
				t.Fatalf("indices %d and %d alias segment %d slot %d", prev, i, seg, slot)
			}
			seen[[2]int{seg, slot}] = i
		}
		if _, _, ok := Locate(cfg, cfg.Len()); ok {
			t.Fatalf("index %d accepted", cfg.Len())
		}
	})
}

func TestReadWriteUseSameAddressing(t *testing.T) {
	d, _, _ := newSim(t, 2, 3)
	for i := range d.Len() {
		c := core.RGB(uint8(i), uint8(i*2), uint8(i*3))
		d.Set(i, c)
		assert.Equal(t, c, d.At(i))
	}
}

func TestClearAndFill(t *testing.T) {
	d, l, r := newSim(t, 2, 2)

	require.NoError(t, d.Fill(blue))
	for i := range d.Len() {
		assert.Equal(t, blue, d.At(i))
	}
	assert.Equal(t, []core.LedColor{blue, blue}, l.Last())
	assert.Equal(t, []core.LedColor{blue, blue}, r.Last())

	require.NoError(t, d.Clear())
	for _, px := range d.All() {
		assert.Equal(t, core.LedColor{}, *px)
	}
	assert.Equal(t, 2, l.Frames())
	assert.Equal(t, 2, r.Frames())
}

func TestApplySetAllOrdersSegments(t *testing.T) {
	d, l, r := newSim(t, 2, 2)

	require.NoError(t, d.Apply(SetAll{Colors: []core.LedColor{red, green, blue, white}}))

	// Logical 0 sits at the far end of the left segment.
	assert.Equal(t, []core.LedColor{green, red}, l.Last())
	assert.Equal(t, []core.LedColor{blue, white}, r.Last())
	assert.Equal(t, 1, l.Frames(), "one flush per batch")
}

func TestApplySetAllLengthMismatch(t *testing.T) {
	d, l, _ := newSim(t, 2, 2)

	err := d.Apply(SetAll{Colors: []core.LedColor{red}})
	require.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, 0, l.Frames())
	assert.Equal(t, core.LedColor{}, d.At(0))
}

func TestApplySetSome(t *testing.T) {
	d, _, r := newSim(t, 1, 3)

	require.NoError(t, d.Apply(SetSome{Pixels: []Pixel{{Index: 1, Color: red}, {Index: 3, Color: blue}}}))
	assert.Equal(t, []core.LedColor{red, {}, blue}, r.Last())

	err := d.Apply(SetSome{Pixels: []Pixel{{Index: 0, Color: white}, {Index: 4, Color: white}}})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, core.LedColor{}, d.At(0), "rejected batch leaves buffer untouched")
	assert.Equal(t, 1, r.Frames())
}

func TestApplyNilIsNoop(t *testing.T) {
	d, l, _ := newSim(t, 1, 1)
	require.NoError(t, d.Apply(nil))
	assert.Equal(t, 0, l.Frames())
}

func TestRenderAppliesBrightness(t *testing.T) {
	b := NewSimBackend()
	d, err := New(core.DriverConfig{Left: 1, Right: 1, Brightness: 0}, b)
	require.NoError(t, err)

	require.NoError(t, d.Fill(white))
	l, _ := b.Current()
	assert.Equal(t, []core.LedColor{{}}, l.Last())
	assert.Equal(t, white, d.At(0), "buffer keeps unscaled colors")
}

func TestRenderFailureKeepsBuffer(t *testing.T) {
	d, l, r := newSim(t, 1, 1)
	boom := errors.New("spi busy")
	l.FailWrites(boom)

	err := d.Fill(red)
	require.ErrorIs(t, err, ErrRender)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, red, d.At(0))
	assert.Equal(t, 1, r.Frames(), "other segment still flushed")

	l.FailWrites(nil)
	require.NoError(t, d.Render())
	assert.Equal(t, []core.LedColor{red}, l.Last())
}

func TestOutOfRangePanics(t *testing.T) {
	d, _, _ := newSim(t, 1, 1)
	assert.Panics(t, func() { d.At(2) })
	assert.Panics(t, func() { d.Set(-1, red) })
}

func TestNewFailures(t *testing.T) {
	b := NewSimBackend()
	_, err := New(core.DriverConfig{Left: -1}, b)
	require.ErrorIs(t, err, ErrInvalidConfig)

	b.FailOpen(errors.New("device busy"))
	_, err = New(core.DriverConfig{Left: 1, Right: 1}, b)
	require.Error(t, err)
	assert.Equal(t, 0, b.Opens())
}

func TestClose(t *testing.T) {
	d, l, r := newSim(t, 1, 1)
	require.NoError(t, d.Close())
	assert.True(t, l.Closed())
	assert.True(t, r.Closed())
	assert.True(t, l.Halted())
}
