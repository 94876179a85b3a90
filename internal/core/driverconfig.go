package core

import "fmt"

// DriverConfig describes the physical strip: LED counts on the left and
// right segments and the global brightness applied at render time.
type DriverConfig struct {
	Left       int   `toml:"left" json:"left" validate:"gte=0,lte=4096"`
	Right      int   `toml:"right" json:"right" validate:"gte=0,lte=4096"`
	Brightness uint8 `toml:"brightness" json:"brightness"`
}

// DefaultDriverConfig is used when driver_config.toml is missing or broken.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{Left: 100, Right: 300, Brightness: 255}
}

// Len is the total number of logical pixels.
func (c DriverConfig) Len() int {
	return c.Left + c.Right
}

func (c DriverConfig) String() string {
	return fmt.Sprintf("left=%d right=%d brightness=%d", c.Left, c.Right, c.Brightness)
}
