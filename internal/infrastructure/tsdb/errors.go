package tsdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for time-series database operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrResolve) {
//	    // DNS has no IPv4 address for the endpoint
//	}
var (
	// ErrConnectionFailed indicates the connection attempt failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrResolve indicates the endpoint host has no usable IPv4 address.
	ErrResolve = errors.New("tsdb: resolve failed")

	// ErrWriteFailed indicates a write failed before a response was read.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrInvalidURL indicates the configured endpoint URL cannot be used.
	ErrInvalidURL = errors.New("tsdb: invalid url")
)

// WriteError is a write rejected by the server.
type WriteError struct {
	Status int
	Body   string
}

func (e *WriteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tsdb: write rejected: HTTP %d", e.Status)
	}
	return fmt.Sprintf("tsdb: write rejected: HTTP %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status.
func (e *WriteError) StatusCode() int { return e.Status }
