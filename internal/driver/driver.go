// Package driver owns the pixel buffer of the two wired LED segments and
// pushes it to the hardware outputs.
package driver

import (
	"errors"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/logging"
)

var (
	ErrIndexOutOfRange = errors.New("pixel index out of range")
	ErrLengthMismatch  = errors.New("color count does not match pixel count")
	ErrInvalidConfig   = errors.New("invalid driver config")
	// ErrRender wraps failures to flush the buffer to an output. The
	// in-memory buffer is still valid when it is returned.
	ErrRender = errors.New("render failed")
)

// Segment indices.
const (
	Left  = 0
	Right = 1
)

// Locate maps a logical index onto a segment and a physical slot. The left
// segment is wired from its far end, so its slots run in reverse.
func Locate(cfg core.DriverConfig, i int) (segment, slot int, ok bool) {
	switch {
	case i < 0 || i >= cfg.Len():
		return 0, 0, false
	case i < cfg.Left:
		return Left, cfg.Left - 1 - i, true
	default:
		return Right, i - cfg.Left, true
	}
}

// Driver is not safe for concurrent use. It is owned by a single goroutine.
type Driver struct {
	cfg      core.DriverConfig
	segments [2][]core.LedColor
	outputs  [2]Output
	wire     [2][]byte
	log      zerolog.Logger
}

// New opens the backend outputs for cfg and returns a driver with a zeroed
// buffer. Nothing is rendered until the first command.
func New(cfg core.DriverConfig, backend Backend) (*Driver, error) {
	if cfg.Left < 0 || cfg.Right < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, cfg)
	}
	outputs, err := backend.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open outputs: %w", err)
	}

	d := &Driver{
		cfg:     cfg,
		outputs: outputs,
		log:     logging.Component("driver"),
	}
	for s, n := range [2]int{cfg.Left, cfg.Right} {
		d.segments[s] = make([]core.LedColor, n)
		d.wire[s] = make([]byte, 3*n)
	}
	d.log.Debug().Stringer("config", cfg).Msg("driver created")
	return d, nil
}

// Len is the number of logical pixels.
func (d *Driver) Len() int { return d.cfg.Len() }

func (d *Driver) slot(i int) *core.LedColor {
	seg, slot, ok := Locate(d.cfg, i)
	if !ok {
		panic(fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, d.cfg.Len()))
	}
	return &d.segments[seg][slot]
}

// At returns the color at logical index i. It panics if i is out of range.
func (d *Driver) At(i int) core.LedColor { return *d.slot(i) }

// Set writes the color at logical index i without rendering. It panics if i
// is out of range.
func (d *Driver) Set(i int, c core.LedColor) { *d.slot(i) = c }

// All yields every pixel in logical order. Writes through the pointer land
// in the buffer; call Render afterwards.
func (d *Driver) All() iter.Seq2[int, *core.LedColor] {
	return func(yield func(int, *core.LedColor) bool) {
		for i := range d.cfg.Len() {
			if !yield(i, d.slot(i)) {
				return
			}
		}
	}
}

// Render flushes both segments, one write per segment, applying the
// configured brightness.
func (d *Driver) Render() error {
	var errs []error
	for s, seg := range d.segments {
		buf := d.wire[s]
		for j, c := range seg {
			c = c.Scale(d.cfg.Brightness)
			buf[3*j], buf[3*j+1], buf[3*j+2] = c.R, c.G, c.B
		}
		if _, err := d.outputs[s].Write(buf); err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", s, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	return nil
}

// Clear blanks every pixel and renders.
func (d *Driver) Clear() error {
	return d.Fill(core.LedColor{})
}

// Fill sets every pixel to c and renders.
func (d *Driver) Fill(c core.LedColor) error {
	for s := range d.segments {
		for j := range d.segments[s] {
			d.segments[s][j] = c
		}
	}
	return d.Render()
}

// Close halts and releases both outputs. The buffer is not flushed; callers
// wanting a dark strip call Clear first.
func (d *Driver) Close() error {
	var errs []error
	for s, out := range d.outputs {
		if out == nil {
			continue
		}
		if err := out.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt segment %d: %w", s, err))
		}
		if err := out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close segment %d: %w", s, err))
		}
		d.outputs[s] = nil
	}
	d.log.Debug().Msg("driver closed")
	return errors.Join(errs...)
}
