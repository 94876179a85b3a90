// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options describes logger configuration supplied at startup.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Writer io.Writer
}

// New builds a logger from Options without touching the global one.
func New(opts Options) (zerolog.Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var output io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console":
		output = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	case "json":
		output = writer
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// Setup replaces the global logger. Component loggers created afterwards
// inherit its level and output.
func Setup(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = l
	return nil
}

// Component returns a child of the global logger tagged with the component
// name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
