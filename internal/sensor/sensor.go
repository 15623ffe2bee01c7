package sensor

import (
	"context"
	"fmt"
	"io"
)

// Sensor obtains one reading. Errors are transient; callers retry.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
}

// Driver is a Sensor that holds an OS resource.
type Driver interface {
	Sensor
	io.Closer
}

// Driver names accepted by Open.
const (
	DriverIIO       = "iio"
	DriverModbus    = "modbus"
	DriverSimulated = "simulated"
)

// Config selects and configures a driver.
type Config struct {
	Driver string

	IIO       IIOConfig
	Modbus    ModbusConfig
	Simulated SimulatedConfig
}

// Open builds the configured driver.
func Open(cfg Config) (Driver, error) {
	switch cfg.Driver {
	case DriverIIO:
		return NewIIO(cfg.IIO)
	case DriverModbus:
		return NewModbus(cfg.Modbus)
	case DriverSimulated:
		return NewSimulated(cfg.Simulated), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
