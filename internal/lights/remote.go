package lights

import (
	"context"

	"lights-controller/internal/core"
)

// Remote is the only way to influence the lights from outside the
// orchestrator. It is a small value; copy it freely.
type Remote struct {
	ch   chan<- core.AppStateChange
	done <-chan struct{}
}

// NewRemote wraps a command channel. done, when closed, makes Send fail fast
// with ErrStopped.
func NewRemote(ch chan<- core.AppStateChange, done <-chan struct{}) Remote {
	return Remote{ch: ch, done: done}
}

// Send queues a change. It blocks while the queue is full.
func (r Remote) Send(ctx context.Context, change core.AppStateChange) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	select {
	case r.ch <- change:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r Remote) SetOn(ctx context.Context, on bool) error {
	return r.Send(ctx, core.OnOff{On: on})
}

func (r Remote) SelectMode(ctx context.Context, index int) error {
	return r.Send(ctx, core.ModeSelect{Index: index})
}

func (r Remote) ChangeParam(ctx context.Context, p core.Param) error {
	return r.Send(ctx, core.ChangeParam{Param: p})
}

func (r Remote) Reconfigure(ctx context.Context, cfg core.DriverConfig) error {
	return r.Send(ctx, core.Reconfigure{Config: cfg})
}

func (r Remote) Stop(ctx context.Context) error {
	return r.Send(ctx, core.Stop{})
}
