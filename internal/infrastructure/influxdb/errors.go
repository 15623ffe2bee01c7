package influxdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrConnectionFailed) {
//	    // server unreachable or unhealthy
//	}
var (
	// ErrConnectionFailed indicates the connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a write failed without a server response.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrClosed indicates a write on a closed session.
	ErrClosed = errors.New("influxdb: session closed")
)

// WriteError is a write rejected by the server.
type WriteError struct {
	Status  int
	Code    string
	Message string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("influxdb: write rejected: HTTP %d: %s: %s", e.Status, e.Code, e.Message)
}

// StatusCode returns the HTTP status.
func (e *WriteError) StatusCode() int { return e.Status }
