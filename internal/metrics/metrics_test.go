package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandlerExposesMetrics(t *testing.T) {
	CommandHandled("modeSelect")
	FrameRendered()
	RenderFailed()
	DriverRebuilt()
	SetActiveMode(3)
	SetOn(true)
	SetClients(2)

	body := scrape(t)
	assert.Contains(t, body, `lights_orchestrator_commands_total{kind="modeSelect"}`)
	assert.Contains(t, body, "lights_driver_frames_total")
	assert.Contains(t, body, "lights_driver_render_errors_total")
	assert.Contains(t, body, "lights_driver_rebuilds_total")
	assert.Contains(t, body, "lights_orchestrator_active_mode 3")
	assert.Contains(t, body, "lights_orchestrator_on 1")
	assert.Contains(t, body, "lights_server_websocket_clients 2")

	SetOn(false)
	assert.Contains(t, scrape(t), "lights_orchestrator_on 0")
}
