package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"lights-controller/internal/core"
	"lights-controller/internal/logging"
)

// ReadDriverConfig decodes and validates driver_config.toml. Missing fields
// keep their defaults.
func ReadDriverConfig(path string) (core.DriverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.DriverConfig{}, err
	}
	cfg := core.DefaultDriverConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return core.DriverConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return core.DriverConfig{}, fmt.Errorf("invalid driver config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDriverConfig is ReadDriverConfig that never fails: any problem falls
// back to the defaults with a warning.
func LoadDriverConfig(path string) core.DriverConfig {
	cfg, err := ReadDriverConfig(path)
	if err != nil {
		def := core.DefaultDriverConfig()
		logging.Component("config").Warn().
			Err(err).
			Str("path", path).
			Stringer("default", def).
			Msg("using default driver config")
		return def
	}
	return cfg
}

// SaveDriverConfig writes cfg atomically.
func SaveDriverConfig(path string, cfg core.DriverConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode driver config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
