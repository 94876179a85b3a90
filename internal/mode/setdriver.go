package mode

import (
	"time"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
)

// SetDriver is the default mode. It keeps the strip dark and has no
// parameters.
type SetDriver struct{}

func NewSetDriver() *SetDriver { return &SetDriver{} }

func (*SetDriver) Name() string              { return "SetDriver" }
func (*SetDriver) Init(Env) driver.Command   { return driver.Clear{} }
func (*SetDriver) Params() []core.Param      { return nil }
func (*SetDriver) OnOff(bool) driver.Command { return driver.Clear{} }
func (*SetDriver) Frames() <-chan time.Time  { return nil }
func (*SetDriver) Tick() driver.Command      { return nil }
func (*SetDriver) Stop()                     {}

func (*SetDriver) UpdateParam(core.Param) (*core.DriverConfig, driver.Command) {
	return nil, driver.Clear{}
}
