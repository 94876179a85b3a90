// Package metrics exposes Prometheus counters for the lights run-loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lights"

var (
	commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "commands_total",
		Help:      "App state changes handled, by kind",
	}, []string{"kind"})

	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "frames_total",
		Help:      "Driver commands applied to the strip",
	})

	renderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "render_errors_total",
		Help:      "Failed flushes to the hardware outputs",
	})

	driverRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "rebuilds_total",
		Help:      "Times the driver was torn down and rebuilt with a new config",
	})

	activeMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "active_mode",
		Help:      "Index of the selected mode",
	})

	lightsOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "on",
		Help:      "1 when the lights are switched on",
	})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients",
	})
)

func CommandHandled(kind string) { commandsHandled.WithLabelValues(kind).Inc() }
func FrameRendered()             { framesRendered.Inc() }
func RenderFailed()              { renderErrors.Inc() }
func DriverRebuilt()             { driverRebuilds.Inc() }
func SetActiveMode(i int)        { activeMode.Set(float64(i)) }
func SetClients(n int)           { wsClients.Set(float64(n)) }

func SetOn(on bool) {
	if on {
		lightsOn.Set(1)
		return
	}
	lightsOn.Set(0)
}

// Handler serves every promauto-registered metric.
func Handler() http.Handler {
	return promhttp.Handler()
}
