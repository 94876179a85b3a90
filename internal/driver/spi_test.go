package driver

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"

	"lights-controller/internal/core"
)

func recordingBackend(bufs *[2]bytes.Buffer) *SPIBackend {
	b := NewSPIBackend("left", "right")
	b.initHost = func() error { return nil }
	b.openPort = func(name string) (spi.PortCloser, error) {
		switch name {
		case "left":
			return spitest.NewRecordRaw(&bufs[Left]), nil
		case "right":
			return spitest.NewRecordRaw(&bufs[Right]), nil
		}
		return nil, errors.New("no such port")
	}
	return b
}

func TestSPIBackendRenders(t *testing.T) {
	var bufs [2]bytes.Buffer
	d, err := New(core.DriverConfig{Left: 2, Right: 3, Brightness: 255}, recordingBackend(&bufs))
	require.NoError(t, err)

	before := [2]int{bufs[Left].Len(), bufs[Right].Len()}
	require.NoError(t, d.Fill(core.RGB(10, 20, 30)))

	assert.Greater(t, bufs[Left].Len(), before[Left])
	assert.Greater(t, bufs[Right].Len(), before[Right])
	assert.Greater(t, bufs[Right].Len()-before[Right], bufs[Left].Len()-before[Left], "longer segment sends more bits")

	require.NoError(t, d.Close())
}

func TestSPIBackendOpenErrors(t *testing.T) {
	var bufs [2]bytes.Buffer
	b := recordingBackend(&bufs)
	b.Ports[Right] = "missing"

	_, err := New(core.DriverConfig{Left: 1, Right: 1}, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	b = recordingBackend(&bufs)
	b.initHost = func() error { return errors.New("no gpio") }
	_, err = New(core.DriverConfig{Left: 1, Right: 1}, b)
	require.ErrorContains(t, err, "init host")
}

func TestSPIBackendSkipsEmptySegment(t *testing.T) {
	var bufs [2]bytes.Buffer
	b := recordingBackend(&bufs)
	b.Ports[Left] = "missing"

	d, err := New(core.DriverConfig{Left: 0, Right: 2, Brightness: 255}, b)
	require.NoError(t, err)
	require.NoError(t, d.Fill(core.RGB(1, 2, 3)))
	assert.Zero(t, bufs[Left].Len())
	assert.NotZero(t, bufs[Right].Len())
	require.NoError(t, d.Close())
}
