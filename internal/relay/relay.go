package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

// Source yields bus outcomes. *bus.Subscription satisfies it.
type Source interface {
	Name() string
	Next(ctx context.Context) (bus.Outcome, error)
}

// Publisher sends retained messages. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Recorder receives relay events. *metrics.Metrics satisfies it.
type Recorder interface {
	RelayPublish(ok bool)
	Lagged(subscriber string, n uint64)
}

// Logger defines the logging interface for the relay.
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

func (noopRecorder) RelayPublish(bool)     {}
func (noopRecorder) Lagged(string, uint64) {}

// Message is the JSON document published for each reading.
type Message struct {
	NodeID      string    `json:"node_id"`
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Encode renders a reading as a relay message.
func Encode(nodeID string, r sensor.Reading) ([]byte, error) {
	data, err := json.Marshal(Message{
		NodeID:      nodeID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Timestamp:   r.At.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding relay message: %w", err)
	}
	return data, nil
}

// Relay forwards delivered readings to a Publisher.
type Relay struct {
	src      Source
	pub      Publisher
	topic    string
	nodeID   string
	logger   Logger
	recorder Recorder
}

// New creates a relay publishing to topic.
func New(src Source, pub Publisher, topic, nodeID string) *Relay {
	return &Relay{
		src:      src,
		pub:      pub,
		topic:    topic,
		nodeID:   nodeID,
		logger:   noopLogger{},
		recorder: noopRecorder{},
	}
}

// SetLogger sets the logger.
func (r *Relay) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetRecorder sets the event recorder.
func (r *Relay) SetRecorder(rec Recorder) {
	if rec != nil {
		r.recorder = rec
	}
}

// Run forwards readings until ctx is cancelled or the topic closes.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay started", "topic", r.topic)
	defer r.logger.Info("relay stopped")

	for {
		out, err := r.src.Next(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrClosed) && ctx.Err() == nil {
				r.logger.Error("subscription failed", "error", err)
			}
			return nil
		}

		if out.Kind == bus.Lagged {
			r.recorder.Lagged(r.src.Name(), out.Missed)
			r.logger.Warn("relay lagged behind producer", "missed", out.Missed)
			continue
		}

		r.forward(out.Reading)
	}
}

func (r *Relay) forward(reading sensor.Reading) {
	payload, err := Encode(r.nodeID, reading)
	if err != nil {
		r.recorder.RelayPublish(false)
		r.logger.Error("encode failed", "error", err)
		return
	}

	if err := r.pub.PublishRetained(r.topic, payload); err != nil {
		r.recorder.RelayPublish(false)
		r.logger.Warn("publish failed", "topic", r.topic, "error", err)
		return
	}

	r.recorder.RelayPublish(true)
	r.logger.Debug("reading relayed", "temperature", reading.Temperature, "humidity", reading.Humidity)
}
