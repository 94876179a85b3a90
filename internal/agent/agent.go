// Package agent wires the lights orchestrator to its outer surfaces.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lights-controller/internal/config"
	"lights-controller/internal/core"
	"lights-controller/internal/driver"
	"lights-controller/internal/lights"
	"lights-controller/internal/logging"
	"lights-controller/internal/mode"
	"lights-controller/internal/mqtt"
	"lights-controller/internal/scheduler"
	"lights-controller/internal/scripts"
	"lights-controller/internal/server"
)

const (
	stopTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	reloadTimeout   = 2 * time.Second
)

type Agent struct {
	config *config.Config
	log    zerolog.Logger
	wg     sync.WaitGroup

	orchestrator *lights.Orchestrator
	scheduler    *scheduler.Scheduler
	server       *server.Server
	mqtt         *mqtt.Bridge
	watcher      *config.Watcher[core.DriverConfig]
}

// NewBackend picks the LED output named by cfg.Backend.
func NewBackend(cfg config.LightsConfig) (driver.Backend, error) {
	switch cfg.Backend {
	case "sim", "":
		return driver.NewSimBackend(), nil
	case "spi":
		return driver.NewSPIBackend(cfg.SPILeft, cfg.SPIRight), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Modes returns the shipped modes in menu order. SetDriver stays first so
// index 0 is always a safe default.
func Modes(cfg config.LightsConfig) []mode.Mode {
	settings := mode.Settings{Dir: cfg.ModesDir}
	setupLog := logging.Component("agent")
	return []mode.Mode{
		mode.NewSetDriver(),
		mode.NewSetup(func(c core.DriverConfig) error {
			if err := config.SaveDriverConfig(cfg.DriverConfig, c); err != nil {
				return err
			}
			setupLog.Info().Stringer("config", c).Str("path", cfg.DriverConfig).Msg("driver config saved")
			return nil
		}),
		mode.NewSolid(settings),
		mode.NewRainbow(settings),
		mode.NewChase(settings),
		mode.NewScript(cfg.ScriptsDir, settings),
	}
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	a := &Agent{
		config: cfg,
		log:    logging.Component("agent"),
	}

	backend, err := NewBackend(cfg.Lights)
	if err != nil {
		return nil, err
	}

	registry := mode.NewRegistry(mode.FileIndexStore{Path: cfg.Lights.ActiveFile}, Modes(cfg.Lights)...)
	a.orchestrator = lights.New(lights.Options{
		Config:    config.LoadDriverConfig(cfg.Lights.DriverConfig),
		Backend:   backend,
		Registry:  registry,
		QueueSize: cfg.Lights.QueueSize,
	})
	remote := a.orchestrator.Remote()

	a.scheduler, err = scheduler.New(remote, cfg.Schedule.File)
	if err != nil {
		return nil, err
	}

	a.server = server.New(server.Options{
		Config:    cfg.Server,
		Remote:    remote,
		State:     a.orchestrator.State(),
		Schedules: a.scheduler,
		Scripts:   &scripts.Library{Dir: cfg.Lights.ScriptsDir},
	})

	if cfg.MQTT.Enabled {
		a.mqtt = mqtt.New(cfg.MQTT, remote, a.orchestrator.State())
	}

	if cfg.Lights.WatchConfig {
		a.watcher = config.NewWatcher(cfg.Lights.DriverConfig, config.ReadDriverConfig)
		a.watcher.OnReload(func(c core.DriverConfig) {
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			if err := remote.Reconfigure(ctx, c); err != nil {
				a.log.Warn().Err(err).Msg("driver config reload not applied")
				return
			}
			a.log.Info().Stringer("config", c).Msg("driver config reloaded")
		})
	}

	return a, nil
}

// Run starts every component and blocks until ctx is cancelled or the
// orchestrator exits on its own. It then shuts everything down.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The orchestrator gets its own context so shutdown can stop it with a
	// Stop change and let it clear the strip.
	orchCtx, orchCancel := context.WithCancel(context.Background())
	defer orchCancel()

	var orchErr error
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		orchErr = a.orchestrator.Run(orchCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.server.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.ListenAndServe(); err != nil {
			a.log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	a.scheduler.Start()

	if a.mqtt != nil {
		if err := a.mqtt.Connect(); err != nil {
			a.log.Error().Err(err).Msg("mqtt setup error")
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.mqtt.Run(ctx)
		}()
	}

	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.log.Warn().Err(err).Msg("driver config watcher not started")
			a.watcher = nil
		}
	}

	a.log.Info().Str("addr", a.config.Server.HTTPAddr).Bool("tls", a.config.Server.TLS()).Msg("agent running")
	<-ctx.Done()

	a.shutdown(orchCancel)
	a.wg.Wait()

	if orchErr != nil && !errors.Is(orchErr, context.Canceled) {
		return orchErr
	}
	return nil
}

func (a *Agent) shutdown(orchCancel context.CancelFunc) {
	a.log.Info().Msg("shutting down")

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.log.Warn().Err(err).Msg("stop watcher")
		}
	}
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.orchestrator.Remote().Stop(ctx); err != nil && !errors.Is(err, lights.ErrStopped) {
		a.log.Warn().Err(err).Msg("stop change not delivered")
	}
	select {
	case <-a.orchestrator.Done():
	case <-ctx.Done():
		a.log.Warn().Msg("orchestrator did not stop in time, cancelling")
		orchCancel()
		<-a.orchestrator.Done()
	}

	if a.mqtt != nil {
		a.mqtt.Close()
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer httpCancel()
	if err := a.server.Shutdown(httpCtx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown")
	}
	a.log.Info().Msg("agent shut down")
}
