package mode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/logging"
	"lights-controller/internal/scripts"
)

const (
	paramReload = "Reload"

	scriptCallBudget = 200 * time.Millisecond
)

// defaultScript is written when the configured script does not exist yet.
const defaultScript = `-- tick is called once per frame with the frame counter and the number
-- of pixels. Return a table of "#rrggbb" strings, a single string to fill
-- the strip, or nil to leave it unchanged.
function tick(frame, n)
  local out = {}
  for i = 1, n do
    out[i] = hsv((frame * 4 + i * 360 / n) % 360, 1, 0.6)
  end
  return out
end
`

type scriptSettings struct {
	File  string `toml:"file"`
	Speed int    `toml:"speed"`
}

// Script runs a user supplied Lua file that computes each frame.
type Script struct {
	library  scripts.Library
	settings Settings
	state    scriptSettings
	pixels   int
	on       bool
	frame    int

	L    *lua.LState
	anim Animator
	log  zerolog.Logger
}

// NewScript loads scripts from dir.
func NewScript(dir string, settings Settings) *Script {
	return &Script{
		library:  scripts.Library{Dir: dir},
		settings: settings,
		state:    scriptSettings{File: "default.lua", Speed: 20},
		log:      logging.Component("mode.script"),
	}
}

func (m *Script) Name() string { return "Script" }

func (m *Script) Init(env Env) driver.Command {
	if err := m.settings.Load(m.Name(), &m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not load settings")
	}
	m.state.Speed = clampInt(m.state.Speed, minSpeed, maxSpeed)
	m.pixels = env.Config.Len()
	m.frame = 0

	if err := m.load(); err != nil {
		m.log.Warn().Err(err).Str("file", m.state.File).Msg("could not load script")
	}
	return m.OnOff(env.On)
}

func (m *Script) Params() []core.Param {
	return []core.Param{
		{Name: paramReload, Value: core.ButtonValue(), Meta: core.ButtonMeta("Reload " + m.state.File)},
		{Name: paramSpeed, Value: core.RangeValue(m.state.Speed), Meta: core.RangeMeta(minSpeed, maxSpeed)},
	}
}

func (m *Script) OnOff(on bool) driver.Command {
	m.on = on
	if !on || m.L == nil {
		m.anim.Stop()
		return driver.Clear{}
	}
	m.anim.Start(float64(m.state.Speed))
	return m.run()
}

func (m *Script) UpdateParam(p core.Param) (*core.DriverConfig, driver.Command) {
	switch {
	case p.Name == paramReload && p.Value.Kind == core.KindButton:
		m.frame = 0
		if err := m.load(); err != nil {
			m.log.Warn().Err(err).Str("file", m.state.File).Msg("could not reload script")
		}
		return nil, m.OnOff(m.on)
	case p.Name == paramSpeed && p.Value.Kind == core.KindRange:
		m.state.Speed = clampInt(p.Value.Range, minSpeed, maxSpeed)
		if m.on && m.L != nil {
			m.anim.Start(float64(m.state.Speed))
		}
		return nil, nil
	}
	m.log.Warn().Str("param", p.Name).Msg("unknown parameter")
	return nil, nil
}

func (m *Script) Frames() <-chan time.Time { return m.anim.Frames() }

func (m *Script) Tick() driver.Command {
	if !m.on || m.L == nil {
		return nil
	}
	m.frame++
	return m.run()
}

func (m *Script) Stop() {
	m.anim.Stop()
	m.closeState()
	if err := m.settings.Save(m.Name(), m.state); err != nil {
		m.log.Warn().Err(err).Msg("could not save settings")
	}
}

// load compiles the script into a fresh state, replacing the previous one.
func (m *Script) load() error {
	m.closeState()

	path, err := m.library.Path(m.state.File)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		m.log.Info().Str("path", path).Msg("creating default script")
		if err := os.WriteFile(path, []byte(defaultScript), 0o644); err != nil {
			return fmt.Errorf("write default script: %w", err)
		}
	}

	L := newSandbox()
	m.registerGoFunctions(L)

	ctx, cancel := context.WithTimeout(context.Background(), scriptCallBudget)
	defer cancel()
	L.SetContext(ctx)
	err = L.DoFile(path)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return fmt.Errorf("run %s: %w", path, err)
	}
	if L.GetGlobal("tick").Type() != lua.LTFunction {
		L.Close()
		return fmt.Errorf("%s does not define a tick function", path)
	}

	m.L = L
	m.log.Info().Str("file", m.state.File).Msg("script loaded")
	return nil
}

func (m *Script) closeState() {
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
}

// run calls tick(frame, n) and converts the result. Script errors blank
// the strip rather than propagate.
func (m *Script) run() driver.Command {
	ctx, cancel := context.WithTimeout(context.Background(), scriptCallBudget)
	defer cancel()

	L := m.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("tick"),
		NRet:    1,
		Protect: true,
	}, lua.LNumber(m.frame), lua.LNumber(m.pixels))
	if err != nil {
		m.log.Warn().Err(err).Int("frame", m.frame).Msg("script tick failed")
		return driver.Clear{}
	}
	ret := L.Get(-1)
	L.Pop(1)

	cmd, err := m.convert(ret)
	if err != nil {
		m.log.Warn().Err(err).Int("frame", m.frame).Msg("script returned an invalid frame")
		return driver.Clear{}
	}
	return cmd
}

func (m *Script) convert(v lua.LValue) (driver.Command, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		c, err := core.ParseHex(string(v))
		if err != nil {
			return nil, err
		}
		return driver.Fill{Color: c}, nil
	case *lua.LTable:
		colors := make([]core.LedColor, m.pixels)
		for i := range colors {
			entry := v.RawGetInt(i + 1)
			if entry == lua.LNil {
				continue
			}
			s, ok := entry.(lua.LString)
			if !ok {
				return nil, fmt.Errorf("pixel %d: expected string, got %s", i+1, entry.Type())
			}
			c, err := core.ParseHex(string(s))
			if err != nil {
				return nil, fmt.Errorf("pixel %d: %w", i+1, err)
			}
			colors[i] = c
		}
		return driver.SetAll{Colors: colors}, nil
	}
	return nil, fmt.Errorf("unsupported return type %s", v.Type())
}

// sandboxLibs are the only standard libraries scripts can reach. os, io,
// package and debug stay closed.
var sandboxLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// newSandbox returns a state without file, process or module access.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range sandboxLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (m *Script) registerGoFunctions(L *lua.LState) {
	L.SetGlobal("rgb", L.NewFunction(luaRGB))
	L.SetGlobal("hsv", L.NewFunction(luaHSV))
	L.SetGlobal("print", L.NewFunction(m.luaPrint))
}

func (m *Script) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	m.log.Info().Str("file", m.state.File).Msg(strings.Join(parts, " "))
	return 0
}

func luaRGB(L *lua.LState) int {
	c := core.RGB(byteArg(L, 1), byteArg(L, 2), byteArg(L, 3))
	L.Push(lua.LString(c.Hex()))
	return 1
}

func luaHSV(L *lua.LState) int {
	c := HSV(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
	L.Push(lua.LString(c.Hex()))
	return 1
}

func byteArg(L *lua.LState, n int) uint8 {
	return uint8(clampInt(L.CheckInt(n), 0, 255))
}
