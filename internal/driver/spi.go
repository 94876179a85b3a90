package driver

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"lights-controller/internal/core"
)

// SPIBackend drives each segment as a WS2812 strip on its own SPI port.
type SPIBackend struct {
	Ports [2]string
	Freq  physic.Frequency

	// Overridable for tests.
	initHost func() error
	openPort func(name string) (spi.PortCloser, error)
}

// NewSPIBackend uses the given SPI port names. Each segment needs its own
// port; an empty name selects the first port the registry knows about.
func NewSPIBackend(left, right string) *SPIBackend {
	return &SPIBackend{
		Ports: [2]string{left, right},
		Freq:  2500 * physic.KiloHertz,
		initHost: func() error {
			_, err := host.Init()
			return err
		},
		openPort: spireg.Open,
	}
}

func (b *SPIBackend) Open(cfg core.DriverConfig) ([2]Output, error) {
	var outputs [2]Output

	if err := b.initHost(); err != nil {
		return outputs, fmt.Errorf("init host: %w", err)
	}

	for s, n := range [2]int{cfg.Left, cfg.Right} {
		if n == 0 {
			outputs[s] = emptyOutput{}
			continue
		}
		port, err := b.openPort(b.Ports[s])
		if err != nil {
			closeAll(outputs)
			return [2]Output{}, fmt.Errorf("open spi port %q: %w", b.Ports[s], err)
		}
		dev, err := nrzled.NewSPI(port, &nrzled.Opts{
			NumPixels: n,
			Channels:  3,
			Freq:      b.Freq,
		})
		if err != nil {
			_ = port.Close()
			closeAll(outputs)
			return [2]Output{}, fmt.Errorf("nrzled on %q: %w", b.Ports[s], err)
		}
		outputs[s] = &spiOutput{dev: dev, port: port}
	}
	return outputs, nil
}

func closeAll(outputs [2]Output) {
	for _, o := range outputs {
		if o != nil {
			_ = o.Close()
		}
	}
}

type spiOutput struct {
	dev  *nrzled.Dev
	port spi.PortCloser
}

func (o *spiOutput) Write(rgb []byte) (int, error) { return o.dev.Write(rgb) }
func (o *spiOutput) Halt() error                   { return o.dev.Halt() }
func (o *spiOutput) Close() error                  { return o.port.Close() }

// emptyOutput stands in for a segment configured with no pixels.
type emptyOutput struct{}

func (emptyOutput) Write(rgb []byte) (int, error) { return len(rgb), nil }
func (emptyOutput) Halt() error                   { return nil }
func (emptyOutput) Close() error                  { return nil }
