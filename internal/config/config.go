// Package config loads the application and driver configuration files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var ErrSharedSPIPort = errors.New("spi_left and spi_right name the same port")

// ServerConfig holds the web layer settings.
type ServerConfig struct {
	HTTPAddr     string `toml:"http_addr" validate:"required"`
	HTTPSAddr    string `toml:"https_addr"`
	TLSCert      string `toml:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey       string `toml:"tls_key" validate:"required_with=TLSCert"`
	RedirectHTTP bool   `toml:"redirect_http"`
	// Static UI directory. Empty leaves / unmounted.
	WebDir string `toml:"web_dir"`
	// Extra websocket origins. Empty keeps the same-host check.
	AllowedOrigins []string `toml:"allowed_origins"`
	// Commands per second accepted from a single websocket client.
	WSRateLimit float64 `toml:"ws_rate_limit" validate:"gt=0"`
	WSRateBurst int     `toml:"ws_rate_burst" validate:"gt=0"`
}

// TLS reports whether HTTPS is configured.
func (s ServerConfig) TLS() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// LightsConfig points at the driver and mode state files.
type LightsConfig struct {
	DriverConfig string `toml:"driver_config" validate:"required"`
	ActiveFile   string `toml:"active_file" validate:"required"`
	ModesDir     string `toml:"modes_dir"`
	ScriptsDir   string `toml:"scripts_dir" validate:"required"`
	Backend      string `toml:"backend" validate:"oneof=sim spi"`
	SPILeft      string `toml:"spi_left" validate:"required_if=Backend spi"`
	SPIRight     string `toml:"spi_right" validate:"required_if=Backend spi"`
	QueueSize    int    `toml:"queue_size" validate:"gt=0"`
	WatchConfig  bool   `toml:"watch_config"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// MQTTConfig enables the optional broker bridge.
type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker" validate:"required_if=Enabled true"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
}

type ScheduleConfig struct {
	File string `toml:"file"`
}

// Config is the root of config.toml.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Lights   LightsConfig   `toml:"lights"`
	Logging  LoggingConfig  `toml:"logging"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads path and applies defaults and validation. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}

	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) sanitize() {
	c.Server.HTTPAddr = strings.TrimSpace(c.Server.HTTPAddr)
	c.Server.HTTPSAddr = strings.TrimSpace(c.Server.HTTPSAddr)
	c.Server.WebDir = strings.TrimSpace(c.Server.WebDir)
	c.Lights.DriverConfig = strings.TrimSpace(c.Lights.DriverConfig)
	c.Lights.ActiveFile = strings.TrimSpace(c.Lights.ActiveFile)
	c.Lights.ModesDir = strings.TrimSpace(c.Lights.ModesDir)
	c.Lights.ScriptsDir = strings.TrimSpace(c.Lights.ScriptsDir)
	c.Lights.Backend = strings.ToLower(strings.TrimSpace(c.Lights.Backend))
	c.Lights.SPILeft = strings.TrimSpace(c.Lights.SPILeft)
	c.Lights.SPIRight = strings.TrimSpace(c.Lights.SPIRight)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.MQTT.TopicPrefix = strings.Trim(strings.TrimSpace(c.MQTT.TopicPrefix), "/")
	c.Schedule.File = strings.TrimSpace(c.Schedule.File)
}

func (c *Config) setDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.HTTPSAddr == "" {
		c.Server.HTTPSAddr = ":8443"
	}
	if c.Server.WSRateLimit <= 0 {
		c.Server.WSRateLimit = 20
	}
	if c.Server.WSRateBurst <= 0 {
		c.Server.WSRateBurst = 10
	}

	if c.Lights.DriverConfig == "" {
		c.Lights.DriverConfig = "driver_config.toml"
	}
	if c.Lights.ActiveFile == "" {
		c.Lights.ActiveFile = "active.txt"
	}
	if c.Lights.ModesDir == "" {
		c.Lights.ModesDir = "modes"
	}
	if c.Lights.ScriptsDir == "" {
		c.Lights.ScriptsDir = "scripts"
	}
	if c.Lights.Backend == "" {
		c.Lights.Backend = "sim"
	}
	if c.Lights.QueueSize <= 0 {
		c.Lights.QueueSize = 32
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.MQTT.Broker == "" && c.MQTT.Enabled {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "lights-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "lights"
	}

	if c.Schedule.File == "" {
		c.Schedule.File = "schedules.json"
	}
}

func (c *Config) validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Lights.Backend == "spi" && c.Lights.SPILeft == c.Lights.SPIRight {
		return fmt.Errorf("config error: %w: %q", ErrSharedSPIPort, c.Lights.SPILeft)
	}
	return nil
}
