package mode

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Animator paces frames for animated modes. Frames are produced no faster
// than the configured rate and never faster than they are consumed.
type Animator struct {
	mu     sync.Mutex
	frames chan time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins producing frames at fps, replacing any running schedule.
func (a *Animator) Start(fps float64) {
	a.Stop()
	if fps <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan time.Time)
	done := make(chan struct{})

	a.mu.Lock()
	a.frames, a.cancel, a.done = frames, cancel, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		limiter := rate.NewLimiter(rate.Limit(fps), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case frames <- time.Now():
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Frames returns nil while stopped.
func (a *Animator) Frames() <-chan time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames != nil
}

// Stop halts frame production and waits for the pacing goroutine to exit.
func (a *Animator) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.frames, a.cancel, a.done = nil, nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
