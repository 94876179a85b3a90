package mode

import (
	"time"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
)

const (
	paramGap = "Gap"

	minGap = 2
	maxGap = 50
)

type chaseSettings struct {
	Color core.LedColor `toml:"color"`
	Gap   int           `toml:"gap"`
	Speed int           `toml:"speed"`
}

// Chase runs evenly spaced dots along the strip.
type Chase struct {
	settings Settings
	state    chaseSettings
	pixels   int
	on       bool
	step     int
	anim     Animator
	log      zerolog.Logger
}

func NewChase(settings Settings) *Chase {
	return &Chase{
		settings: settings,
		state:    chaseSettings{Color: core.RGB(255, 120, 0), Gap: 8, Speed: 15},
		log:      logging.Component("mode.chase"),
	}
}

func (m *Chase) Name() string { return "Chase" }

func (m *Chase) Init(env Env) driver.Command {
	if err := m.settings.Load(m.Name(), &m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not load settings")
	}
	m.state.Gap = clampInt(m.state.Gap, minGap, maxGap)
	m.state.Speed = clampInt(m.state.Speed, minSpeed, maxSpeed)
	m.pixels = env.Config.Len()
	return m.OnOff(env.On)
}

func (m *Chase) Params() []core.Param {
	return []core.Param{
		{Name: paramColor, Value: core.ColorValue(m.state.Color), Meta: core.ColorMeta()},
		{Name: paramGap, Value: core.RangeValue(m.state.Gap), Meta: core.RangeMeta(minGap, maxGap)},
		{Name: paramSpeed, Value: core.RangeValue(m.state.Speed), Meta: core.RangeMeta(minSpeed, maxSpeed)},
	}
}

func (m *Chase) OnOff(on bool) driver.Command {
	m.on = on
	if !on {
		m.anim.Stop()
		return driver.Clear{}
	}
	m.anim.Start(float64(m.state.Speed))
	return m.frame()
}

func (m *Chase) UpdateParam(p core.Param) (*core.DriverConfig, driver.Command) {
	if v, ok := rangeParam(p, paramGap); ok {
		m.state.Gap = clampInt(v, minGap, maxGap)
	} else if v, ok := rangeParam(p, paramSpeed); ok {
		m.state.Speed = clampInt(v, minSpeed, maxSpeed)
		if m.on {
			m.anim.Start(float64(m.state.Speed))
		}
		return nil, nil
	} else if p.Name == paramColor && p.Value.Kind == core.KindColor {
		m.state.Color = p.Value.Color
	} else {
		m.log.Warn().Str("param", p.Name).Msg("unknown parameter")
		return nil, nil
	}
	if !m.on {
		return nil, nil
	}
	return nil, m.frame()
}

func (m *Chase) Frames() <-chan time.Time { return m.anim.Frames() }

func (m *Chase) Tick() driver.Command {
	if !m.on {
		return nil
	}
	m.step = (m.step + 1) % m.state.Gap
	return m.frame()
}

func (m *Chase) frame() driver.Command {
	colors := make([]core.LedColor, m.pixels)
	for i := range colors {
		if (i+m.step)%m.state.Gap == 0 {
			colors[i] = m.state.Color
		}
	}
	return driver.SetAll{Colors: colors}
}

func (m *Chase) Stop() {
	m.anim.Stop()
	if err := m.settings.Save(m.Name(), m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not save settings")
	}
}
