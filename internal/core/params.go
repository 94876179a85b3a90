package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ValueKind tags the variant held by a Value and a Meta.
type ValueKind string

const (
	KindToggle ValueKind = "toggle"
	KindButton ValueKind = "button"
	KindRange  ValueKind = "range"
	KindColor  ValueKind = "color"
)

var (
	ErrUnknownKind    = errors.New("unknown parameter type")
	ErrMetaMismatch   = errors.New("parameter meta does not match value type")
	ErrUnknownMeta    = errors.New("unrecognised parameter meta shape")
	ErrMissingValue   = errors.New("parameter value missing")
	ErrEmptyParamName = errors.New("parameter name is empty")
)

// Value is the current value of a mode parameter. Only the field matching
// Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Toggle bool
	Range  int
	Color  LedColor
}

func ToggleValue(on bool) Value   { return Value{Kind: KindToggle, Toggle: on} }
func ButtonValue() Value          { return Value{Kind: KindButton} }
func RangeValue(v int) Value      { return Value{Kind: KindRange, Range: v} }
func ColorValue(c LedColor) Value { return Value{Kind: KindColor, Color: c} }

// Meta carries hints the front-end needs to render a parameter widget.
type Meta struct {
	Kind     ValueKind
	OnLabel  string
	OffLabel string
	Label    string
	Min, Max int
}

func ToggleMeta(on, off string) *Meta { return &Meta{Kind: KindToggle, OnLabel: on, OffLabel: off} }
func ButtonMeta(label string) *Meta   { return &Meta{Kind: KindButton, Label: label} }
func RangeMeta(min, max int) *Meta    { return &Meta{Kind: KindRange, Min: min, Max: max} }
func ColorMeta() *Meta                { return &Meta{Kind: KindColor} }

// Param is a single adjustable input of a lights mode.
type Param struct {
	Name  string
	Value Value
	Meta  *Meta
}

// Validate checks the meta variant matches the value variant.
func (p Param) Validate() error {
	if p.Name == "" {
		return ErrEmptyParamName
	}
	switch p.Value.Kind {
	case KindToggle, KindButton, KindRange, KindColor:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, p.Value.Kind)
	}
	if p.Meta != nil && p.Meta.Kind != p.Value.Kind {
		return fmt.Errorf("%w: %s value with %s meta", ErrMetaMismatch, p.Value.Kind, p.Meta.Kind)
	}
	return nil
}

type paramWire struct {
	Name  string          `json:"name"`
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Meta  json.RawMessage `json:"meta"`
}

var jsonNull = json.RawMessage("null")

func (p Param) MarshalJSON() ([]byte, error) {
	w := paramWire{Name: p.Name, Type: p.Value.Kind, Meta: jsonNull}

	var err error
	switch p.Value.Kind {
	case KindToggle:
		w.Value, err = json.Marshal(p.Value.Toggle)
	case KindButton:
	case KindRange:
		w.Value, err = json.Marshal(p.Value.Range)
	case KindColor:
		w.Value, err = json.Marshal(p.Value.Color)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Value.Kind)
	}
	if err != nil {
		return nil, err
	}

	if p.Meta != nil {
		w.Meta, err = p.Meta.marshal()
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var w paramWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	v := Value{Kind: w.Type}
	needsValue := true
	var target any
	switch w.Type {
	case KindToggle:
		target = &v.Toggle
	case KindButton:
		needsValue = false
	case KindRange:
		target = &v.Range
	case KindColor:
		target = &v.Color
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
	if needsValue {
		if len(w.Value) == 0 || bytes.Equal(w.Value, jsonNull) {
			return fmt.Errorf("%w: %s %q", ErrMissingValue, w.Type, w.Name)
		}
		if err := json.Unmarshal(w.Value, target); err != nil {
			return fmt.Errorf("decode %s value: %w", w.Type, err)
		}
	}

	meta, err := unmarshalMeta(w.Meta)
	if err != nil {
		return err
	}
	if meta != nil && meta.Kind != v.Kind {
		return fmt.Errorf("%w: %s value with %s meta", ErrMetaMismatch, v.Kind, meta.Kind)
	}

	*p = Param{Name: w.Name, Value: v, Meta: meta}
	return nil
}

func (m Meta) marshal() (json.RawMessage, error) {
	switch m.Kind {
	case KindToggle:
		return json.Marshal(struct {
			On  string `json:"on"`
			Off string `json:"off"`
		}{m.OnLabel, m.OffLabel})
	case KindButton:
		return json.Marshal(struct {
			Label string `json:"label"`
		}{m.Label})
	case KindRange:
		return json.Marshal(struct {
			Min int `json:"min"`
			Max int `json:"max"`
		}{m.Min, m.Max})
	case KindColor:
		return jsonNull, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
}

// unmarshalMeta recognises the meta variant from its shape, the way the
// front-end sends it. A null or absent meta yields nil.
func unmarshalMeta(raw json.RawMessage) (*Meta, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMeta, err)
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := fields[k]; !ok {
				return false
			}
		}
		return true
	}

	switch {
	case has("on", "off"):
		var t struct {
			On  string `json:"on"`
			Off string `json:"off"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMeta, err)
		}
		return ToggleMeta(t.On, t.Off), nil
	case has("label"):
		var b struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMeta, err)
		}
		return ButtonMeta(b.Label), nil
	case has("min", "max"):
		var r struct {
			Min int `json:"min"`
			Max int `json:"max"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMeta, err)
		}
		return RangeMeta(r.Min, r.Max), nil
	}
	return nil, ErrUnknownMeta
}
