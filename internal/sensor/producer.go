package sensor

import (
	"context"
	"errors"
	"time"
)

// Default producer timings.
const (
	DefaultInterval      = 5 * time.Second
	DefaultRetryInterval = 2 * time.Second
)

// Publisher accepts valid readings. Publish must not block.
type Publisher interface {
	Publish(r Reading)
}

// Recorder receives producer events. A nil Recorder is allowed.
type Recorder interface {
	ReadingPublished(temperature, humidity float32)
	ReadingDiscarded()
	SensorError()
}

// Logger defines the logging interface for the producer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) ReadingPublished(float32, float32) {}
func (noopRecorder) ReadingDiscarded()                 {}
func (noopRecorder) SensorError()                      {}

// ProducerConfig holds the sampling cadence.
type ProducerConfig struct {
	// Interval is the wait after a successful read.
	Interval time.Duration

	// RetryInterval is the wait after a failed read.
	RetryInterval time.Duration
}

// Producer samples a Sensor and publishes valid readings.
type Producer struct {
	sensor   Sensor
	pub      Publisher
	cfg      ProducerConfig
	logger   Logger
	recorder Recorder
}

// NewProducer creates a producer. Zero durations take the defaults.
func NewProducer(s Sensor, pub Publisher, cfg ProducerConfig) *Producer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Producer{
		sensor:   s,
		pub:      pub,
		cfg:      cfg,
		logger:   noopLogger{},
		recorder: noopRecorder{},
	}
}

// SetLogger sets the logger.
func (p *Producer) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetRecorder sets the event recorder.
func (p *Producer) SetRecorder(r Recorder) {
	if r != nil {
		p.recorder = r
	}
}

// Run samples until ctx is cancelled. It returns nil on cancellation.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer started",
		"interval", p.cfg.Interval,
		"retry_interval", p.cfg.RetryInterval,
	)
	for {
		wait := p.sample(ctx)
		if ctx.Err() != nil {
			break
		}
		if !sleep(ctx, wait) {
			break
		}
	}
	p.logger.Info("producer stopped")
	return nil
}

// sample performs one read and returns how long to wait before the next.
func (p *Producer) sample(ctx context.Context) time.Duration {
	r, err := p.sensor.Read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		p.recorder.SensorError()
		p.logger.Warn("sensor read failed", "error", err)
		return p.cfg.RetryInterval
	}

	if err := r.Validate(); err != nil {
		p.recorder.ReadingDiscarded()
		p.logger.Warn("reading discarded", "error", err)
		return p.cfg.Interval
	}

	p.pub.Publish(r)
	p.recorder.ReadingPublished(r.Temperature, r.Humidity)
	p.logger.Debug("reading published",
		"temperature", r.Temperature,
		"humidity", r.Humidity,
	)
	return p.cfg.Interval
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
