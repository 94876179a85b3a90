package driver

import (
	"errors"
	"slices"
	"sync"

	"lights-controller/internal/core"
)

var ErrOutputClosed = errors.New("output closed")

// SimBackend is an off-hardware backend that records every frame. It is the
// default when no SPI port is configured and doubles as a test double.
type SimBackend struct {
	mu      sync.Mutex
	opened  [][2]*SimOutput
	openErr error
}

func NewSimBackend() *SimBackend {
	return &SimBackend{}
}

// FailOpen makes subsequent Open calls return err. Pass nil to recover.
func (b *SimBackend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

func (b *SimBackend) Open(cfg core.DriverConfig) ([2]Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return [2]Output{}, b.openErr
	}
	pair := [2]*SimOutput{
		{pixels: cfg.Left},
		{pixels: cfg.Right},
	}
	b.opened = append(b.opened, pair)
	return [2]Output{pair[0], pair[1]}, nil
}

// Opens is the number of successful Open calls.
func (b *SimBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

// Current returns the outputs of the most recent Open, or nil.
func (b *SimBackend) Current() (left, right *SimOutput) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		return nil, nil
	}
	last := b.opened[len(b.opened)-1]
	return last[0], last[1]
}

// SimOutput records written frames in memory.
type SimOutput struct {
	mu       sync.Mutex
	pixels   int
	frames   [][]byte
	writeErr error
	halted   bool
	closed   bool
}

func (o *SimOutput) Write(rgb []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, ErrOutputClosed
	}
	if o.writeErr != nil {
		return 0, o.writeErr
	}
	o.frames = append(o.frames, slices.Clone(rgb))
	o.halted = false
	return len(rgb), nil
}

func (o *SimOutput) Halt() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.halted = true
	return nil
}

func (o *SimOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

// FailWrites makes subsequent writes return err. Pass nil to recover.
func (o *SimOutput) FailWrites(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writeErr = err
}

// Frames is the number of successful writes.
func (o *SimOutput) Frames() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

// Last returns the most recent frame decoded into colors, in physical order.
func (o *SimOutput) Last() []core.LedColor {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]core.LedColor, o.pixels)
	if len(o.frames) == 0 {
		return out
	}
	f := o.frames[len(o.frames)-1]
	for i := range out {
		out[i] = core.RGB(f[3*i], f[3*i+1], f[3*i+2])
	}
	return out
}

func (o *SimOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *SimOutput) Halted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.halted
}
