package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func TestRecording(t *testing.T) {
	m := New()

	m.ReadingPublished(21.5, 55)
	m.ReadingPublished(22, 54)
	m.ReadingDiscarded()
	m.SensorError()
	m.Lagged("display", 3)
	m.DeliveryWrite(ResultOK)
	m.DeliveryWrite(ResultAPIError)
	m.DeliveryWrite(ResultOK)
	m.DeliveryConnect(false)
	m.DeliveryState(2)
	m.RenderError()
	m.RelayPublish(true)

	out := scrape(t, m)

	for _, want := range []string{
		"sensornode_sensor_readings_published_total 2",
		"sensornode_sensor_readings_discarded_total 1",
		"sensornode_sensor_read_errors_total 1",
		"sensornode_sensor_temperature_celsius 22",
		"sensornode_sensor_humidity_percent 54",
		`sensornode_bus_lagged_readings_total{subscriber="display"} 3`,
		`sensornode_delivery_writes_total{result="ok"} 2`,
		`sensornode_delivery_writes_total{result="api_error"} 1`,
		`sensornode_delivery_connects_total{result="transport_error"} 1`,
		"sensornode_delivery_state 2",
		"sensornode_display_render_errors_total 1",
		`sensornode_relay_publishes_total{result="ok"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.ReadingPublished(1, 2)
	m.ReadingDiscarded()
	m.SensorError()
	m.Lagged("x", 1)
	m.DeliveryWrite(ResultOK)
	m.DeliveryConnect(true)
	m.DeliveryState(1)
	m.RenderError()
	m.RelayPublish(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SensorError()

	if out := scrape(t, b); strings.Contains(out, "sensornode_sensor_read_errors_total 1") {
		t.Error("second instance shares collectors with the first")
	}
}
