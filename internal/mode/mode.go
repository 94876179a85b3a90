// Package mode defines the pluggable light behaviors and the registry that
// tracks which one is active.
package mode

import (
	"time"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
)

// Env is what a mode learns about the outside world when it becomes active.
type Env struct {
	Config core.DriverConfig
	On     bool
}

// Mode produces driver commands. It never touches the pixel buffer itself.
// All methods are called from the orchestrator goroutine only.
type Mode interface {
	// Name is the display label and is stable across restarts.
	Name() string
	// Init is called each time the mode becomes active, including at startup
	// and after the driver was rebuilt.
	Init(env Env) driver.Command
	// Params reflects the current internal state.
	Params() []core.Param
	OnOff(on bool) driver.Command
	// UpdateParam applies a UI change. A non-nil config asks the
	// orchestrator to rebuild the driver before applying the command.
	UpdateParam(p core.Param) (*core.DriverConfig, driver.Command)
	// Frames fires whenever Tick has a new frame ready. Static modes return
	// nil, which blocks forever in a select.
	Frames() <-chan time.Time
	Tick() driver.Command
	// Stop releases timers and flushes settings before returning.
	Stop()
}
