package mode

import (
	"math"

	"lights-controller/internal/core"
)

// HSV converts hue in degrees and saturation/value in [0,1] to a color.
func HSV(h, s, v float64) core.LedColor {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = clamp01(s)
	v = clamp01(v)

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return core.RGB(channel(r+m), channel(g+m), channel(b+m))
}

func channel(f float64) uint8 {
	return uint8(math.Round(clamp01(f) * 255))
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// rangeParam extracts the value of a range param named name.
func rangeParam(p core.Param, name string) (int, bool) {
	if p.Name != name || p.Value.Kind != core.KindRange {
		return 0, false
	}
	return p.Value.Range, true
}
