// Package lights runs the single goroutine that owns the LED driver and the
// active mode.
package lights

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
	"lights-controller/internal/metrics"
	"lights-controller/internal/mode"
)

var (
	ErrCommandChannelClosed = errors.New("command channel closed")
	ErrStopped              = errors.New("lights orchestrator stopped")
	ErrNoModes              = errors.New("no modes registered")
)

const defaultQueueSize = 32

type Options struct {
	Config   core.DriverConfig
	Backend  driver.Backend
	Registry *mode.Registry
	// QueueSize bounds the command channel when Commands is nil.
	QueueSize int
	// Commands overrides the command channel. Closing it stops Run with
	// ErrCommandChannelClosed.
	Commands chan core.AppStateChange
}

// Orchestrator serialises every change to the lights. Only the goroutine
// running Run touches the driver and the modes.
type Orchestrator struct {
	cfg      core.DriverConfig
	backend  driver.Backend
	registry *mode.Registry

	commands chan core.AppStateChange
	done     chan struct{}
	state    *core.StateWatch

	driver *driver.Driver
	on     bool
	log    zerolog.Logger
}

func New(opts Options) *Orchestrator {
	commands := opts.Commands
	if commands == nil {
		size := opts.QueueSize
		if size <= 0 {
			size = defaultQueueSize
		}
		commands = make(chan core.AppStateChange, size)
	}

	o := &Orchestrator{
		cfg:      opts.Config,
		backend:  opts.Backend,
		registry: opts.Registry,
		commands: commands,
		done:     make(chan struct{}),
		log:      logging.Component("lights"),
	}
	o.state = core.NewStateWatch(o.snapshot())
	return o
}

// Remote returns a handle for sending changes. Any number of copies may be
// used concurrently.
func (o *Orchestrator) Remote() Remote {
	return Remote{ch: o.commands, done: o.done}
}

// State is the latest-value broadcast of AppState.
func (o *Orchestrator) State() *core.StateWatch { return o.state }

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Run owns the driver until a Stop change arrives (nil), ctx is cancelled
// (ctx.Err()), the command channel is closed, or the driver cannot be
// rebuilt. It must be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	active := o.registry.Active()
	if active == nil {
		return ErrNoModes
	}

	d, err := driver.New(o.cfg, o.backend)
	if err != nil {
		return fmt.Errorf("build driver: %w", err)
	}
	o.driver = d
	metrics.SetActiveMode(o.registry.Selected())
	metrics.SetOn(o.on)

	o.log.Info().
		Stringer("config", o.cfg).
		Str("mode", active.Name()).
		Msg("orchestrator started")
	o.apply(active.Init(o.env()))
	o.publish()

	for {
		frames := o.registry.Active().Frames()

		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()

		case change, ok := <-o.commands:
			if !ok {
				o.log.Error().Msg("command channel closed")
				o.shutdown()
				return ErrCommandChannelClosed
			}
			stop, err := o.handle(change)
			if err != nil {
				return err
			}
			if stop {
				o.shutdown()
				o.log.Info().Msg("orchestrator stopped")
				return nil
			}
			o.publish()

		case <-frames:
			o.apply(o.registry.Active().Tick())
			o.publish()
		}
	}
}

// handle dispatches one change. A non-nil error is fatal for Run.
func (o *Orchestrator) handle(change core.AppStateChange) (stop bool, err error) {
	o.log.Debug().Str("change", change.Kind()).Msg("handling change")
	metrics.CommandHandled(change.Kind())
	active := o.registry.Active()

	switch c := change.(type) {
	case core.OnOff:
		o.on = c.On
		metrics.SetOn(c.On)
		o.apply(active.OnOff(c.On))

	case core.ModeSelect:
		if c.Index < 0 || c.Index >= o.registry.Len() {
			o.log.Warn().Int("index", c.Index).Int("modes", o.registry.Len()).Msg("mode index out of range")
			return false, nil
		}
		active.Stop()
		if err := o.registry.Select(c.Index); err != nil {
			o.log.Warn().Err(err).Msg("mode selected but not persisted")
		}
		next := o.registry.Active()
		metrics.SetActiveMode(c.Index)
		o.log.Info().Str("from", active.Name()).Str("to", next.Name()).Msg("mode switched")
		o.apply(next.Init(o.env()))

	case core.ChangeParam:
		cfg, cmd := active.UpdateParam(c.Param)
		if cfg != nil {
			if err := o.rebuild(*cfg); err != nil {
				return false, err
			}
		}
		o.apply(cmd)

	case core.Reconfigure:
		if c.Config == o.cfg {
			o.log.Debug().Msg("driver config unchanged")
			return false, nil
		}
		if err := o.rebuild(c.Config); err != nil {
			return false, err
		}

	case core.Stop:
		return true, nil

	default:
		o.log.Warn().Str("change", fmt.Sprintf("%T", change)).Msg("unknown change")
	}
	return false, nil
}

// rebuild replaces the driver. The old strip is cleared before it is
// released, and the active mode is re-initialised against the new config.
func (o *Orchestrator) rebuild(cfg core.DriverConfig) error {
	active := o.registry.Active()
	active.Stop()

	o.releaseDriver()
	d, err := driver.New(cfg, o.backend)
	if err != nil {
		return fmt.Errorf("rebuild driver with %s: %w", cfg, err)
	}
	o.driver = d
	o.cfg = cfg
	metrics.DriverRebuilt()
	o.log.Info().Stringer("config", cfg).Msg("driver rebuilt")

	o.apply(active.Init(o.env()))
	return nil
}

func (o *Orchestrator) apply(cmd driver.Command) {
	if cmd == nil {
		return
	}
	err := o.driver.Apply(cmd)
	switch {
	case err == nil:
		metrics.FrameRendered()
	case errors.Is(err, driver.ErrRender):
		metrics.RenderFailed()
		o.log.Error().Err(err).Str("command", driver.Name(cmd)).Msg("render failed")
	default:
		o.log.Warn().Err(err).Str("command", driver.Name(cmd)).Msg("command rejected")
	}
}

func (o *Orchestrator) shutdown() {
	o.registry.Active().Stop()
	o.releaseDriver()
}

func (o *Orchestrator) releaseDriver() {
	if o.driver == nil {
		return
	}
	if err := o.driver.Clear(); err != nil {
		o.log.Error().Err(err).Msg("could not clear strip")
	}
	if err := o.driver.Close(); err != nil {
		o.log.Error().Err(err).Msg("could not close driver")
	}
	o.driver = nil
}

func (o *Orchestrator) env() mode.Env {
	return mode.Env{Config: o.cfg, On: o.on}
}

func (o *Orchestrator) snapshot() core.AppState {
	s := core.AppState{
		OnOff:    o.on,
		Modes:    o.registry.Names(),
		Selected: o.registry.Selected(),
	}
	if active := o.registry.Active(); active != nil {
		s.Params = active.Params()
	}
	return s
}

func (o *Orchestrator) publish() {
	o.state.Publish(o.snapshot())
}
