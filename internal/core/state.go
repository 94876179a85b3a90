package core

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// AppState is the snapshot pushed to every observer after each change.
type AppState struct {
	OnOff    bool     `json:"onOff"`
	Modes    []string `json:"modes"`
	Selected int      `json:"selected"`
	Params   []Param  `json:"params"`
}

// Clone returns a deep copy so observers never share slices with the
// orchestrator.
func (s AppState) Clone() AppState {
	out := s
	out.Modes = slices.Clone(s.Modes)
	out.Params = slices.Clone(s.Params)
	for i, p := range out.Params {
		if p.Meta != nil {
			m := *p.Meta
			out.Params[i].Meta = &m
		}
	}
	return out
}

func (s AppState) MarshalJSON() ([]byte, error) {
	type plain AppState
	p := plain(s)
	if p.Modes == nil {
		p.Modes = []string{}
	}
	if p.Params == nil {
		p.Params = []Param{}
	}
	return json.Marshal(p)
}

// StateWatch is a single-slot broadcast of AppState. Publish overwrites the
// previous snapshot; readers either take the latest value or wait for the
// next version.
type StateWatch struct {
	mu      sync.Mutex
	state   AppState
	version uint64
	changed chan struct{}
}

// NewStateWatch creates a StateWatch holding the initial snapshot at version 0.
func NewStateWatch(initial AppState) *StateWatch {
	return &StateWatch{
		state:   initial.Clone(),
		changed: make(chan struct{}),
	}
}

// Publish replaces the current snapshot and wakes all waiters.
func (w *StateWatch) Publish(s AppState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = s.Clone()
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// Latest returns the current snapshot and its version.
func (w *StateWatch) Latest() (AppState, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone(), w.version
}

// Wait blocks until a snapshot newer than after is available, then returns it.
// Intermediate snapshots may be skipped.
func (w *StateWatch) Wait(ctx context.Context, after uint64) (AppState, uint64, error) {
	for {
		w.mu.Lock()
		if w.version > after {
			s, v := w.state.Clone(), w.version
			w.mu.Unlock()
			return s, v, nil
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return AppState{}, after, ctx.Err()
		case <-ch:
		}
	}
}
