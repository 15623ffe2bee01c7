package delivery

import (
	"context"
	"errors"
)

// Dialer opens sessions to the remote endpoint.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Session writes records to an open connection.
type Session interface {
	// Write sends one complete record. An error implementing StatusError
	// means the server answered and rejected it; any other error means the
	// session is unusable.
	Write(ctx context.Context, record []byte) error
	Close() error
}

// StatusError is a write rejected by the server with an HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

// APIStatus returns the status code when err is, or wraps, a StatusError.
func APIStatus(err error) (int, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode(), true
	}
	return 0, false
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Session, error) { return f(ctx) }
