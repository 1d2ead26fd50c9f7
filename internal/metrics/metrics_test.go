package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("set_property", time.Millisecond, nil)
	m.Observe("set_property", time.Millisecond, errors.New("bad chain"))
	m.Failed("unknown")

	out := scrape(t, m)
	assert.Contains(t, out, `meshview_commands_total{type="set_property"} 2`)
	assert.Contains(t, out, `meshview_command_failures_total{type="set_property"} 1`)
	assert.Contains(t, out, `meshview_command_failures_total{type="unknown"} 1`)
	assert.Contains(t, out, `meshview_command_apply_seconds_count{type="set_property"} 2`)
}

func TestLoadsAndFrames(t *testing.T) {
	m := New()
	m.Load("environment_map", nil)
	m.Load("environment_map", errors.New("404"))
	m.Frame()
	m.Event("img")

	out := scrape(t, m)
	assert.Contains(t, out, `meshview_loads_total{kind="environment_map",result="ok"} 1`)
	assert.Contains(t, out, `meshview_loads_total{kind="environment_map",result="error"} 1`)
	assert.Contains(t, out, "meshview_frames_rendered_total 1")
	assert.Contains(t, out, `meshview_events_sent_total{type="img"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("delete", 0, nil)
		m.Failed("delete")
		m.Load("object", nil)
		m.Frame()
		m.Event("control")
	})
}
