package sensor

import (
	"fmt"
	"time"
)

// Plausible range of a DHT22-class sensor.
const (
	MinTemperature = -40.0
	MaxTemperature = 80.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Reading is one temperature/humidity sample.
type Reading struct {
	// Temperature in degrees Celsius.
	Temperature float32 `json:"temperature"`

	// Humidity in percent relative humidity.
	Humidity float32 `json:"humidity"`

	// At is the time the sample was taken.
	At time.Time `json:"at"`
}

// Validate returns ErrOutOfRange unless -40 <= temperature <= 80 and
// 0 < humidity < 100. NaN fails both checks.
func (r Reading) Validate() error {
	if !(r.Temperature >= MinTemperature && r.Temperature <= MaxTemperature) {
		return fmt.Errorf("%w: temperature %.1f", ErrOutOfRange, r.Temperature)
	}
	if !(r.Humidity > MinHumidity && r.Humidity < MaxHumidity) {
		return fmt.Errorf("%w: humidity %.1f", ErrOutOfRange, r.Humidity)
	}
	return nil
}

