package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownChange is returned when a payload matches none of the
// AppStateChange wire shapes.
var ErrUnknownChange = errors.New("unknown app state change")

// AppStateChange is a request to alter light state. It is consumed exactly
// once by the orchestrator. The concrete types are OnOff, ModeSelect,
// ChangeParam, Stop and Reconfigure.
type AppStateChange interface {
	// Kind is a short stable name used in logs and metrics labels.
	Kind() string
	isChange()
}

type OnOff struct{ On bool }

type ModeSelect struct{ Index int }

type ChangeParam struct{ Param Param }

type Stop struct{}

// Reconfigure rebuilds the driver with a new config. It is raised by the
// config watcher and has no browser wire form.
type Reconfigure struct{ Config DriverConfig }

func (OnOff) Kind() string       { return "onOff" }
func (ModeSelect) Kind() string  { return "modeSelect" }
func (ChangeParam) Kind() string { return "changeParam" }
func (Stop) Kind() string        { return "stop" }
func (Reconfigure) Kind() string { return "reconfigure" }

func (OnOff) isChange()       {}
func (ModeSelect) isChange()  {}
func (ChangeParam) isChange() {}
func (Stop) isChange()        {}
func (Reconfigure) isChange() {}

func (c OnOff) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{"onOff": c.On})
}

func (c ModeSelect) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{"modeSelect": c.Index})
}

func (c ChangeParam) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Param{"changeParam": c.Param})
}

func (Stop) MarshalJSON() ([]byte, error) {
	return []byte(`"stop"`), nil
}

// DecodeChange parses one of the wire shapes:
//
//	{"onOff":true}  {"modeSelect":1}  {"changeParam":{...}}  "stop"
func DecodeChange(data []byte) (AppStateChange, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnknownChange)
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownChange, err)
		}
		if s == "stop" {
			return Stop{}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownChange, s)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChange, err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one key, got %d", ErrUnknownChange, len(envelope))
	}

	for key, raw := range envelope {
		switch key {
		case "onOff":
			var on bool
			if err := json.Unmarshal(raw, &on); err != nil {
				return nil, fmt.Errorf("decode onOff: %w", err)
			}
			return OnOff{On: on}, nil
		case "modeSelect":
			var idx int
			if err := json.Unmarshal(raw, &idx); err != nil {
				return nil, fmt.Errorf("decode modeSelect: %w", err)
			}
			return ModeSelect{Index: idx}, nil
		case "changeParam":
			var p Param
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode changeParam: %w", err)
			}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("decode changeParam: %w", err)
			}
			return ChangeParam{Param: p}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownChange, key)
		}
	}
	return nil, ErrUnknownChange
}
