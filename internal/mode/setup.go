package mode

import (
	"time"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
)

const (
	paramLeft       = "Left"
	paramRight      = "Right"
	paramBrightness = "Brightness"

	maxSegmentLEDs = 1000
)

// Setup edits the driver config from the UI. While active it lights the left
// segment red and the right segment green so the split point is visible.
type Setup struct {
	cfg  core.DriverConfig
	on   bool
	save func(core.DriverConfig) error
	log  zerolog.Logger
}

// NewSetup persists accepted configs through save, which may be nil.
func NewSetup(save func(core.DriverConfig) error) *Setup {
	return &Setup{save: save, log: logging.Component("mode.setup")}
}

func (m *Setup) Name() string { return "Setup" }

func (m *Setup) Init(env Env) driver.Command {
	m.cfg, m.on = env.Config, env.On
	return m.frame()
}

func (m *Setup) Params() []core.Param {
	return []core.Param{
		{Name: paramLeft, Value: core.RangeValue(m.cfg.Left), Meta: core.RangeMeta(0, maxSegmentLEDs)},
		{Name: paramRight, Value: core.RangeValue(m.cfg.Right), Meta: core.RangeMeta(0, maxSegmentLEDs)},
		{Name: paramBrightness, Value: core.RangeValue(int(m.cfg.Brightness)), Meta: core.RangeMeta(0, 255)},
	}
}

func (m *Setup) OnOff(on bool) driver.Command {
	m.on = on
	return m.frame()
}

func (m *Setup) UpdateParam(p core.Param) (*core.DriverConfig, driver.Command) {
	next := m.cfg
	if v, ok := rangeParam(p, paramLeft); ok {
		next.Left = clampInt(v, 0, maxSegmentLEDs)
	} else if v, ok := rangeParam(p, paramRight); ok {
		next.Right = clampInt(v, 0, maxSegmentLEDs)
	} else if v, ok := rangeParam(p, paramBrightness); ok {
		next.Brightness = uint8(clampInt(v, 0, 255))
	} else {
		m.log.Warn().Str("param", p.Name).Str("type", string(p.Value.Kind)).Msg("unknown parameter")
		return nil, nil
	}
	if next == m.cfg {
		return nil, nil
	}

	if m.save != nil {
		if err := m.save(next); err != nil {
			m.log.Warn().Err(err).Msg("could not save driver config")
		}
	}
	m.cfg = next
	return &next, m.frame()
}

func (m *Setup) frame() driver.Command {
	if !m.on {
		return driver.Clear{}
	}
	colors := make([]core.LedColor, m.cfg.Len())
	for i := range colors {
		if i < m.cfg.Left {
			colors[i] = core.RGB(255, 0, 0)
		} else {
			colors[i] = core.RGB(0, 255, 0)
		}
	}
	return driver.SetAll{Colors: colors}
}

func (m *Setup) Frames() <-chan time.Time { return nil }
func (m *Setup) Tick() driver.Command     { return nil }
func (m *Setup) Stop()                    {}
