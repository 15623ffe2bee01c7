package display

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/devices/tm1637"
	"periph.io/x/periph/host"
)

// Renderer draws four digits.
type Renderer interface {
	Render(digits [4]uint8) error
}

// ErrPinNotFound indicates a GPIO name unknown to the host.
var ErrPinNotFound = errors.New("display: gpio pin not found")

// TM1637 drives a TM1637 4-digit LED module at full brightness.
type TM1637 struct {
	mu  sync.Mutex
	dev *tm1637.Dev
}

// OpenTM1637 initialises the host drivers and the module on the named
// clock and data pins (e.g. "GPIO12", "GPIO13").
func OpenTM1637(clkPin, dioPin string) (*TM1637, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph init: %w", err)
	}

	clk := gpioreg.ByName(clkPin)
	if clk == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, clkPin)
	}
	dio := gpioreg.ByName(dioPin)
	if dio == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, dioPin)
	}

	dev, err := tm1637.New(clk, dio)
	if err != nil {
		return nil, fmt.Errorf("display: tm1637: %w", err)
	}
	if err := dev.SetBrightness(tm1637.Brightness14); err != nil {
		return nil, fmt.Errorf("display: tm1637 brightness: %w", err)
	}
	return &TM1637{dev: dev}, nil
}

// Render writes the digits as hexadecimal segments.
func (t *TM1637) Render(d [4]uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.dev.Write(tm1637.Digits(int(d[0]), int(d[1]), int(d[2]), int(d[3]))); err != nil {
		return fmt.Errorf("display: tm1637 write: %w", err)
	}
	return nil
}

// Close blanks the display.
func (t *TM1637) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.Halt()
}

// Console logs each rendered value.
type Console struct {
	logger Logger

	mu   sync.Mutex
	last [4]uint8
	n    int
}

// NewConsole returns a Console renderer logging at info level.
func NewConsole(logger Logger) *Console {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Console{logger: logger}
}

// Render logs the digits.
func (c *Console) Render(d [4]uint8) error {
	c.mu.Lock()
	c.last = d
	c.n++
	c.mu.Unlock()

	c.logger.Info("display", "digits", fmt.Sprintf("%d%d %d%d", d[0], d[1], d[2], d[3]))
	return nil
}

// Last returns the most recent digits and how many renders happened.
func (c *Console) Last() ([4]uint8, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.n
}
