package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParamJSONShapes(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		want  string
	}{
		{
			name:  "toggle",
			param: Param{Name: "Power", Value: ToggleValue(true), Meta: ToggleMeta("On", "Off")},
			want:  `{"name":"Power","type":"toggle","value":true,"meta":{"on":"On","off":"Off"}}`,
		},
		{
			name:  "button",
			param: Param{Name: "Button", Value: ButtonValue(), Meta: ButtonMeta("Press me!")},
			want:  `{"name":"Button","type":"button","meta":{"label":"Press me!"}}`,
		},
		{
			name:  "range",
			param: Param{Name: "Speed", Value: RangeValue(-3), Meta: RangeMeta(-10, 10)},
			want:  `{"name":"Speed","type":"range","value":-3,"meta":{"min":-10,"max":10}}`,
		},
		{
			name:  "color",
			param: Param{Name: "Color", Value: ColorValue(RGB(255, 0, 16)), Meta: ColorMeta()},
			want:  `{"name":"Color","type":"color","value":"#ff0010","meta":null}`,
		},
		{
			name:  "no meta",
			param: Param{Name: "Plain", Value: RangeValue(7)},
			want:  `{"name":"Plain","type":"range","value":7,"meta":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.param)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestParamDecode(t *testing.T) {
	var p Param
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Speed","type":"range","value":4,"meta":{"min":0,"max":9}}`), &p))
	assert.Equal(t, Param{Name: "Speed", Value: RangeValue(4), Meta: RangeMeta(0, 9)}, p)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"Go","type":"button","meta":{"label":"Go"}}`), &p))
	assert.Equal(t, Param{Name: "Go", Value: ButtonValue(), Meta: ButtonMeta("Go")}, p)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"C","type":"color","value":"#010203"}`), &p))
	assert.Equal(t, Param{Name: "C", Value: ColorValue(RGB(1, 2, 3))}, p)
}

func TestParamDecodeErrors(t *testing.T) {
	tests := map[string]struct {
		in  string
		err error
	}{
		"unknown type":       {`{"name":"x","type":"slider","value":1,"meta":null}`, ErrUnknownKind},
		"missing value":      {`{"name":"x","type":"range","meta":null}`, ErrMissingValue},
		"meta mismatch":      {`{"name":"x","type":"toggle","value":true,"meta":{"min":0,"max":1}}`, ErrMetaMismatch},
		"unknown meta shape": {`{"name":"x","type":"range","value":1,"meta":{"low":0}}`, ErrUnknownMeta},
		"bad color":          {`{"name":"x","type":"color","value":"red","meta":null}`, ErrInvalidHex},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var p Param
			err := json.Unmarshal([]byte(tt.in), &p)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParamValidate(t *testing.T) {
	assert.NoError(t, Param{Name: "a", Value: ToggleValue(false)}.Validate())
	assert.ErrorIs(t, Param{Name: "a", Value: ToggleValue(false), Meta: ButtonMeta("x")}.Validate(), ErrMetaMismatch)
	assert.ErrorIs(t, Param{Name: "a", Value: Value{Kind: "nope"}}.Validate(), ErrUnknownKind)
	assert.ErrorIs(t, Param{Value: ButtonValue()}.Validate(), ErrEmptyParamName)
}

func drawValue(t *rapid.T) Value {
	switch rapid.IntRange(0, 3).Draw(t, "kind") {
	case 0:
		return ToggleValue(rapid.Bool().Draw(t, "toggle"))
	case 1:
		return ButtonValue()
	case 2:
		return RangeValue(rapid.IntRange(-1<<20, 1<<20).Draw(t, "range"))
	default:
		return ColorValue(RGB(rapid.Uint8().Draw(t, "r"), rapid.Uint8().Draw(t, "g"), rapid.Uint8().Draw(t, "b")))
	}
}

func TestParamRoundTripWithoutMeta(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Param{Name: rapid.StringN(1, 16, -1).Draw(t, "name"), Value: drawValue(t)}
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got Param
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if got.Name != p.Name || got.Value != p.Value || got.Meta != nil {
			t.Fatalf("round trip: got %+v want %+v", got, p)
		}
	})
}
