package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/delivery"
	"github.com/knightpp/esp-sensor/internal/infrastructure/config"
	"github.com/knightpp/esp-sensor/internal/infrastructure/logging"
	"github.com/knightpp/esp-sensor/internal/infrastructure/metrics"
	"github.com/knightpp/esp-sensor/internal/link"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

type fakeDelivery struct {
	state atomic.Int32
}

func (f *fakeDelivery) State() delivery.State {
	return delivery.State(f.state.Load())
}

type fakeMQTT struct {
	err error
}

func (f fakeMQTT) HealthCheck(context.Context) error {
	return f.err
}

type fakeLink struct {
	stats link.Stats
}

func (f fakeLink) Stats() link.Stats {
	return f.stats
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer creates a Server over a fresh bus with a feed subscription.
func testServer(t *testing.T, mutate func(*Deps)) (*Server, *bus.Topic) {
	t.Helper()

	topic := bus.New(bus.Config{Capacity: 4})
	feed, err := topic.Subscribe("api")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:   testLogger(),
		Readings: topic,
		Feed:     feed,
		NodeID:   "gh-1",
		Version:  "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, topic
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{Readings: bus.New(bus.Config{})}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without reading store should fail")
	}
}

func TestHealth(t *testing.T) {
	del := &fakeDelivery{}
	srv, topic := testServer(t, func(d *Deps) {
		d.Delivery = del
		d.MQTT = fakeMQTT{}
	})
	topic.Publish(sensor.Reading{Temperature: 21, Humidity: 40})

	tests := []struct {
		name       string
		state      delivery.State
		wantStatus string
	}{
		{"connected", delivery.StateConnected, "ok"},
		{"sending", delivery.StateSending, "ok"},
		{"connecting", delivery.StateConnecting, "degraded"},
		{"disconnected", delivery.StateDisconnected, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			del.state.Store(int32(tt.state))

			rec := get(t, srv.Handler(), "/api/v1/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Delivery != tt.state.String() {
				t.Errorf("delivery = %q, want %q", resp.Delivery, tt.state.String())
			}
			if resp.NodeID != "gh-1" || resp.Version != "test" {
				t.Errorf("identity = %q/%q", resp.NodeID, resp.Version)
			}
			if resp.MQTT == nil || !resp.MQTT.Connected {
				t.Errorf("mqtt = %+v, want connected", resp.MQTT)
			}
			if resp.Bus.Published != 1 || len(resp.Bus.Subscribers) != 1 || resp.Bus.Subscribers[0].Name != "api" {
				t.Errorf("bus = %+v", resp.Bus)
			}
		})
	}
}

func TestHealthOptionalParts(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.MQTT = fakeMQTT{err: errors.New("mqtt: client not connected")}
	})

	rec := get(t, srv.Handler(), "/api/v1/health")

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Delivery != "" {
		t.Errorf("status=%q delivery=%q, want ok and no delivery", resp.Status, resp.Delivery)
	}
	if resp.MQTT == nil || resp.MQTT.Connected {
		t.Errorf("mqtt = %+v, want disconnected", resp.MQTT)
	}
	if resp.Link != nil {
		t.Errorf("link = %+v, want omitted", resp.Link)
	}
}

func TestHealthLinkStatus(t *testing.T) {
	tests := []struct {
		name       string
		stats      link.Stats
		wantStatus string
	}{
		{
			name:       "running",
			stats:      link.Stats{Name: "wpa_supplicant", Status: link.StatusRunning, PID: 42, UptimeSeconds: 7},
			wantStatus: "ok",
		},
		{
			name:       "restarting",
			stats:      link.Stats{Name: "wpa_supplicant", Status: link.StatusStarting, Restarts: 1},
			wantStatus: "ok",
		},
		{
			name:       "gave up",
			stats:      link.Stats{Name: "wpa_supplicant", Status: link.StatusFailed, Restarts: 3, LastError: "exit status 255"},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, func(d *Deps) {
				d.Link = fakeLink{stats: tt.stats}
			})

			rec := get(t, srv.Handler(), "/api/v1/health")

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Link == nil || *resp.Link != tt.stats {
				t.Errorf("link = %+v, want %+v", resp.Link, tt.stats)
			}
		})
	}
}

func TestReading(t *testing.T) {
	srv, topic := testServer(t, nil)

	rec := get(t, srv.Handler(), "/api/v1/reading")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before first reading = %d, want 404", rec.Code)
	}
	var apiErr Error
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	topic.Publish(sensor.Reading{Temperature: 21.5, Humidity: 40.25, At: at})
	topic.Publish(sensor.Reading{Temperature: 22.5, Humidity: 41.5, At: at.Add(time.Minute)})

	rec = get(t, srv.Handler(), "/api/v1/reading")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ReadingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := ReadingResponse{Temperature: 22.5, Humidity: 41.5, Timestamp: "2026-03-01T12:01:00Z"}
	if resp != want {
		t.Errorf("reading = %+v, want %+v", resp, want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ReadingPublished(21.5, 40)
	srv, _ := testServer(t, func(d *Deps) { d.Metrics = m })

	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("exposition should include Go runtime metrics")
	}

	bare, _ := testServer(t, nil)
	if rec := get(t, bare.Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("status without metrics = %d, want 404", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}

	rec = get(t, srv.Handler(), "/api/v1/health")
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", got)
	}
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, ws *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readingTemperature(msg WSMessage) (float64, bool) {
	if msg.Type != WSTypeEvent || msg.EventType != ChannelReading {
		return 0, false
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		return 0, false
	}
	temp, ok := payload["temperature"].(float64)
	return temp, ok
}

func TestWebSocketStreamsReadings(t *testing.T) {
	srv, topic := testServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)
	go srv.runFeed(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	topic.Publish(sensor.Reading{Temperature: 20, Humidity: 40})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	// The latest reading arrives on connect.
	first := readUntil(t, ws, func(m WSMessage) bool { _, ok := readingTemperature(m); return ok })
	if temp, _ := readingTemperature(first); temp != 20 {
		t.Errorf("first reading temperature = %v, want 20", temp)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	topic.Publish(sensor.Reading{Temperature: 23, Humidity: 45})
	readUntil(t, ws, func(m WSMessage) bool {
		temp, ok := readingTemperature(m)
		return ok && temp == 23
	})

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	pong := readUntil(t, ws, func(m WSMessage) bool { return m.Type == WSTypePong })
	if pong.ID != "p1" {
		t.Errorf("pong ID = %q, want p1", pong.ID)
	}
}

func TestWebSocketUnsubscribe(t *testing.T) {
	srv, _ := testServer(t, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	msg := WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReading}},
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}

	resp := readUntil(t, ws, func(m WSMessage) bool { return m.ID == "u1" })
	if resp.Type != WSTypeResponse {
		t.Fatalf("response type = %q, want %q", resp.Type, WSTypeResponse)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	errMsg := readUntil(t, ws, func(m WSMessage) bool { return m.Type == WSTypeError })
	if errMsg.Payload == nil {
		t.Error("error message should carry a payload")
	}
}

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // Test drain
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
