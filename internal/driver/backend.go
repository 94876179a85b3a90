package driver

import "lights-controller/internal/core"

// Output is one hardware channel driving a segment.
type Output interface {
	// Write pushes raw RGB bytes, three per pixel, in physical order.
	Write(rgb []byte) (int, error)
	// Halt turns the segment dark.
	Halt() error
	Close() error
}

// Backend opens the outputs for both segments of a config. Failing to open
// is fatal for the driver being built.
type Backend interface {
	Open(cfg core.DriverConfig) ([2]Output, error)
}
