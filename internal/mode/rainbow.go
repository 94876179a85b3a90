package mode

import (
	"time"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
)

const (
	paramSpeed   = "Speed"
	paramReverse = "Reverse"

	minSpeed = 1
	maxSpeed = 60
)

type rainbowSettings struct {
	Speed   int  `toml:"speed"`
	Reverse bool `toml:"reverse"`
}

// Rainbow scrolls a full hue wheel along the strip.
type Rainbow struct {
	settings Settings
	state    rainbowSettings
	pixels   int
	on       bool
	offset   float64
	anim     Animator
	log      zerolog.Logger
}

func NewRainbow(settings Settings) *Rainbow {
	return &Rainbow{
		settings: settings,
		state:    rainbowSettings{Speed: 20},
		log:      logging.Component("mode.rainbow"),
	}
}

func (m *Rainbow) Name() string { return "Rainbow" }

func (m *Rainbow) Init(env Env) driver.Command {
	if err := m.settings.Load(m.Name(), &m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not load settings")
	}
	m.state.Speed = clampInt(m.state.Speed, minSpeed, maxSpeed)
	m.pixels = env.Config.Len()
	return m.OnOff(env.On)
}

func (m *Rainbow) Params() []core.Param {
	return []core.Param{
		{Name: paramSpeed, Value: core.RangeValue(m.state.Speed), Meta: core.RangeMeta(minSpeed, maxSpeed)},
		{Name: paramReverse, Value: core.ToggleValue(m.state.Reverse), Meta: core.ToggleMeta("Reverse", "Forward")},
	}
}

func (m *Rainbow) OnOff(on bool) driver.Command {
	m.on = on
	if !on {
		m.anim.Stop()
		return driver.Clear{}
	}
	m.anim.Start(float64(m.state.Speed))
	return m.frame()
}

func (m *Rainbow) UpdateParam(p core.Param) (*core.DriverConfig, driver.Command) {
	switch {
	case p.Name == paramSpeed && p.Value.Kind == core.KindRange:
		m.state.Speed = clampInt(p.Value.Range, minSpeed, maxSpeed)
		if m.on {
			m.anim.Start(float64(m.state.Speed))
		}
	case p.Name == paramReverse && p.Value.Kind == core.KindToggle:
		m.state.Reverse = p.Value.Toggle
	default:
		m.log.Warn().Str("param", p.Name).Msg("unknown parameter")
		return nil, nil
	}
	return nil, nil
}

func (m *Rainbow) Frames() <-chan time.Time { return m.anim.Frames() }

func (m *Rainbow) Tick() driver.Command {
	if !m.on {
		return nil
	}
	step := 3.0
	if m.state.Reverse {
		step = -step
	}
	m.offset += step
	return m.frame()
}

func (m *Rainbow) frame() driver.Command {
	colors := make([]core.LedColor, m.pixels)
	for i := range colors {
		colors[i] = HSV(m.offset+360*float64(i)/float64(m.pixels), 1, 1)
	}
	return driver.SetAll{Colors: colors}
}

func (m *Rainbow) Stop() {
	m.anim.Stop()
	if err := m.settings.Save(m.Name(), m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not save settings")
	}
}
