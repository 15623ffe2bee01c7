package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// IIO channel files, in milli-units.
const (
	iioTemperatureFile = "in_temp_input"
	iioHumidityFile    = "in_humidityrelative_input"
)

// DefaultIIODevice is the first IIO device on a typical single-sensor board.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIOConfig locates the IIO device directory.
type IIOConfig struct {
	// Device is the sysfs directory of the sensor, e.g.
	// /sys/bus/iio/devices/iio:device0.
	Device string
}

// IIO reads a DHT-class sensor through the kernel industrial-I/O interface.
//
// The kernel driver performs the single-wire timing protocol; each channel
// read triggers a conversion and frequently fails with EIO when the sensor
// misses a pulse. Such failures are returned as ErrRead.
type IIO struct {
	dir string
}

// NewIIO checks the device directory exists.
func NewIIO(cfg IIOConfig) (*IIO, error) {
	dir := cfg.Device
	if dir == "" {
		dir = DefaultIIODevice
	}
	if _, err := os.Stat(filepath.Join(dir, iioTemperatureFile)); err != nil {
		return nil, fmt.Errorf("%w: iio device %s: %w", ErrRead, dir, err)
	}
	return &IIO{dir: dir}, nil
}

// Read returns the current temperature and humidity.
func (s *IIO) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	temp, err := s.channel(iioTemperatureFile)
	if err != nil {
		return Reading{}, err
	}
	hum, err := s.channel(iioHumidityFile)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: temp, Humidity: hum, At: time.Now()}, nil
}

func (s *IIO) channel(name string) (float32, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRead, name, err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRead, name, err)
	}
	return float32(milli) / 1000, nil
}

// Close is a no-op; channel files are opened per read.
func (s *IIO) Close() error { return nil }
