package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/delivery"
	"github.com/knightpp/esp-sensor/internal/link"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/reading", s.handleReading)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status           string      `json:"status"`
	Version          string      `json:"version"`
	NodeID           string      `json:"node_id,omitempty"`
	UptimeSeconds    int64       `json:"uptime_seconds"`
	Delivery         string      `json:"delivery,omitempty"`
	MQTT             *MQTTHealth `json:"mqtt,omitempty"`
	Link             *link.Stats `json:"link,omitempty"`
	Bus              BusHealth   `json:"bus"`
	WebSocketClients int         `json:"websocket_clients"`
}

// MQTTHealth reports the relay's broker link.
type MQTTHealth struct {
	Connected bool `json:"connected"`
}

// BusHealth reports bus counters.
type BusHealth struct {
	Published   uint64      `json:"published"`
	Subscribers []bus.Stats `json:"subscribers"`
}

// ReadingResponse is the body of GET /api/v1/reading and of WebSocket
// reading events.
type ReadingResponse struct {
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

func newReadingResponse(r sensor.Reading) ReadingResponse {
	resp := ReadingResponse{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	}
	if !r.At.IsZero() {
		resp.Timestamp = r.At.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleHealth reports the node's health. The node is degraded while the
// delivery loop has no open session or the Wi-Fi supervisor gave up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		NodeID:        s.nodeID,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Bus: BusHealth{
			Published:   s.readings.Published(),
			Subscribers: s.readings.Stats(),
		},
		WebSocketClients: s.hub.ClientCount(),
	}

	if s.delivery != nil {
		state := s.delivery.State()
		resp.Delivery = state.String()
		if state != delivery.StateConnected && state != delivery.StateSending {
			resp.Status = "degraded"
		}
	}

	if s.mqtt != nil {
		resp.MQTT = &MQTTHealth{Connected: s.mqtt.HealthCheck(r.Context()) == nil}
	}

	if s.link != nil {
		st := s.link.Stats()
		resp.Link = &st
		if st.Status == link.StatusFailed {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReading returns the most recent reading.
func (s *Server) handleReading(w http.ResponseWriter, _ *http.Request) {
	reading, ok := s.readings.Latest()
	if !ok {
		writeNotFound(w, "no reading published yet")
		return
	}
	writeJSON(w, http.StatusOK, newReadingResponse(reading))
}
