package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lights-controller/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "sim", cfg.Lights.Backend)
	assert.Equal(t, "active.txt", cfg.Lights.ActiveFile)
	assert.Equal(t, "driver_config.toml", cfg.Lights.DriverConfig)
	assert.Equal(t, 32, cfg.Lights.QueueSize)
	assert.False(t, cfg.Server.TLS())
	assert.False(t, cfg.MQTT.Enabled)
	assert.Empty(t, cfg.Server.WebDir)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoadParsesSections(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
http_addr = " :80 "
https_addr = ":443"
tls_cert = "cert.pem"
tls_key = "key.pem"
redirect_http = true

[lights]
backend = "SPI"
spi_left = "/dev/spidev0.0"
spi_right = "/dev/spidev1.0"

[logging]
level = "DEBUG"
format = "json"

[mqtt]
enabled = true
topic_prefix = "/home/strip/"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":80", cfg.Server.HTTPAddr)
	assert.True(t, cfg.Server.TLS())
	assert.True(t, cfg.Server.RedirectHTTP)
	assert.Equal(t, "spi", cfg.Lights.Backend)
	assert.Equal(t, "/dev/spidev1.0", cfg.Lights.SPIRight)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "home/strip", cfg.MQTT.TopicPrefix)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad toml":       `[server`,
		"unknown field":  "[lights]\ncolour = 1\n",
		"bad backend":    "[lights]\nbackend = \"pwm\"\n",
		"bad level":      "[logging]\nlevel = \"loud\"\n",
		"cert w/out key": "[server]\ntls_cert = \"c.pem\"\n",
		"spi no ports":   "[lights]\nbackend = \"spi\"\n",
		"spi one port":   "[lights]\nbackend = \"spi\"\nspi_left = \"SPI0.0\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.toml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsSharedSPIPort(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", `
[lights]
backend = "spi"
spi_left = "SPI0.0"
spi_right = " SPI0.0 "
`))
	assert.ErrorIs(t, err, ErrSharedSPIPort)

	cfg, err := Load(writeFile(t, "config.toml", `
[lights]
backend = "spi"
spi_left = "SPI0.0"
spi_right = "SPI1.0"
`))
	require.NoError(t, err)
	assert.Equal(t, "SPI0.0", cfg.Lights.SPILeft)
}

func TestDriverConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "driver_config.toml")
	want := core.DriverConfig{Left: 12, Right: 34, Brightness: 56}
	require.NoError(t, SaveDriverConfig(path, want))

	got, err := ReadDriverConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want, LoadDriverConfig(path))
}

func TestDriverConfigPartialKeepsDefaults(t *testing.T) {
	got, err := ReadDriverConfig(writeFile(t, "d.toml", "left = 5\n"))
	require.NoError(t, err)
	assert.Equal(t, core.DriverConfig{Left: 5, Right: 300, Brightness: 255}, got)
}

func TestLoadDriverConfigFallsBack(t *testing.T) {
	def := core.DefaultDriverConfig()
	assert.Equal(t, def, LoadDriverConfig(filepath.Join(t.TempDir(), "missing.toml")))
	assert.Equal(t, def, LoadDriverConfig(writeFile(t, "d.toml", "left = \"many\"")))
	assert.Equal(t, def, LoadDriverConfig(writeFile(t, "d.toml", "left = -4")))
	assert.Equal(t, def, LoadDriverConfig(writeFile(t, "d.toml", "brightness = 300")))
}
