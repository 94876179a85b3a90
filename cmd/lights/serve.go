package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lights-controller/internal/agent"
	"lights-controller/internal/config"
	"lights-controller/internal/logging"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lights orchestrator and its web, MQTT and schedule surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := logging.Setup(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return err
	}
	log.Info().Str("version", version).Str("commit", commit).Str("built", date).Msg("starting lights controller")

	a, err := agent.NewAgent(cfg)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("lights controller shut down gracefully")
	return nil
}
