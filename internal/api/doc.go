// Package api implements the HTTP status API and WebSocket feed of the node.
//
// This package provides:
//   - GET /api/v1/health: delivery state, bus counters, MQTT link
//   - GET /api/v1/reading: the most recent reading (404 before the first one)
//   - GET /metrics: Prometheus exposition
//   - GET /api/v1/ws: WebSocket stream of readings
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server never talks to the sensor. It reads the bus single-slot
// history for /reading and holds its own bus subscription which the
// WebSocket hub fans out to connected clients. A slow or absent client
// never stalls the producer: the subscription drops on overflow and the
// hub skips clients whose send buffer is full.
//
// # Graceful Degradation
//
// Delivery, MQTT, metrics and the WebSocket feed are all optional. Missing
// parts are omitted from /health.
package api
