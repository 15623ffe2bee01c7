package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig configures an RS-485 temperature/humidity transmitter.
type ModbusConfig struct {
	// Device is the serial port, e.g. /dev/ttyUSB0.
	Device   string
	BaudRate int
	DataBits int
	// Parity is "N", "E" or "O".
	Parity   string
	StopBits int
	SlaveID  byte

	// Address of the temperature input register. Humidity is read from the
	// next register.
	Address uint16

	// Scale divides the raw register values (10 for 0.1 resolution).
	Scale float32

	Timeout time.Duration
}

// DefaultModbusConfig returns settings for an XY-MD02 style transmitter.
func DefaultModbusConfig() ModbusConfig {
	return ModbusConfig{
		Device:   "/dev/ttyUSB0",
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		SlaveID:  1,
		Address:  1,
		Scale:    10,
		Timeout:  time.Second,
	}
}

// Modbus reads temperature and humidity from two consecutive input
// registers over Modbus RTU.
type Modbus struct {
	cfg     ModbusConfig
	handler *modbus.RTUClientHandler
	client  modbus.Client

	mu sync.Mutex
}

// NewModbus opens the serial port.
func NewModbus(cfg ModbusConfig) (*Modbus, error) {
	def := DefaultModbusConfig()
	if cfg.Device == "" {
		cfg.Device = def.Device
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = def.DataBits
	}
	if cfg.Parity == "" {
		cfg.Parity = def.Parity
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = def.StopBits
	}
	if cfg.SlaveID == 0 {
		cfg.SlaveID = def.SlaveID
	}
	if cfg.Scale == 0 {
		cfg.Scale = def.Scale
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.SlaveId = cfg.SlaveID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("%w: modbus %s: %w", ErrRead, cfg.Device, err)
	}

	return &Modbus{
		cfg:     cfg,
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Read queries both registers in one request.
func (s *Modbus) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	s.mu.Lock()
	raw, err := s.client.ReadInputRegisters(s.cfg.Address, 2)
	s.mu.Unlock()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: modbus slave %d: %w", ErrRead, s.cfg.SlaveID, err)
	}

	r, err := decodeRegisters(raw, s.cfg.Scale)
	if err != nil {
		return Reading{}, err
	}
	r.At = time.Now()
	return r, nil
}

// Close releases the serial port.
func (s *Modbus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Close()
}

// decodeRegisters converts two big-endian registers: signed temperature
// followed by unsigned humidity, both divided by scale.
func decodeRegisters(raw []byte, scale float32) (Reading, error) {
	if len(raw) < 4 {
		return Reading{}, fmt.Errorf("%w: short modbus response (%d bytes)", ErrRead, len(raw))
	}
	temp := int16(binary.BigEndian.Uint16(raw[0:2]))
	hum := binary.BigEndian.Uint16(raw[2:4])
	return Reading{
		Temperature: float32(temp) / scale,
		Humidity:    float32(hum) / scale,
	}, nil
}
