package sensor

import "errors"

var (
	// ErrRead indicates the driver failed to obtain a reading.
	ErrRead = errors.New("sensor: read failed")

	// ErrOutOfRange indicates a reading outside the plausible sensor range.
	ErrOutOfRange = errors.New("sensor: reading out of range")

	// ErrUnknownDriver indicates an unsupported driver name in configuration.
	ErrUnknownDriver = errors.New("sensor: unknown driver")
)
