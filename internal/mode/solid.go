package mode

import (
	"time"

	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
)

const paramColor = "Color"

type solidSettings struct {
	Color core.LedColor `toml:"color"`
}

// Solid fills the whole strip with one color.
type Solid struct {
	settings Settings
	state    solidSettings
	on       bool
	log      zerolog.Logger
}

func NewSolid(settings Settings) *Solid {
	return &Solid{
		settings: settings,
		state:    solidSettings{Color: core.RGB(255, 255, 255)},
		log:      logging.Component("mode.solid"),
	}
}

func (m *Solid) Name() string { return "Solid" }

func (m *Solid) Init(env Env) driver.Command {
	if err := m.settings.Load(m.Name(), &m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not load settings")
	}
	m.on = env.On
	return m.frame()
}

func (m *Solid) Params() []core.Param {
	return []core.Param{
		{Name: paramColor, Value: core.ColorValue(m.state.Color), Meta: core.ColorMeta()},
	}
}

func (m *Solid) OnOff(on bool) driver.Command {
	m.on = on
	return m.frame()
}

func (m *Solid) UpdateParam(p core.Param) (*core.DriverConfig, driver.Command) {
	if p.Name != paramColor || p.Value.Kind != core.KindColor {
		m.log.Warn().Str("param", p.Name).Msg("unknown parameter")
		return nil, nil
	}
	m.state.Color = p.Value.Color
	return nil, m.frame()
}

func (m *Solid) frame() driver.Command {
	if !m.on {
		return driver.Clear{}
	}
	return driver.Fill{Color: m.state.Color}
}

func (m *Solid) Frames() <-chan time.Time { return nil }
func (m *Solid) Tick() driver.Command     { return nil }

func (m *Solid) Stop() {
	if err := m.settings.Save(m.Name(), m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not save settings")
	}
}
