package display

import (
	"context"
	"errors"

	"github.com/knightpp/esp-sensor/internal/bus"
)

// Source yields bus outcomes. *bus.Subscription satisfies it.
type Source interface {
	Name() string
	Next(ctx context.Context) (bus.Outcome, error)
}

// Recorder receives display events. A nil Recorder is allowed.
type Recorder interface {
	RenderError()
	Lagged(subscriber string, n uint64)
}

// Logger defines the logging interface for the display loop.
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

func (noopRecorder) RenderError()          {}
func (noopRecorder) Lagged(string, uint64) {}

// Loop renders every delivered reading.
type Loop struct {
	src      Source
	renderer Renderer
	logger   Logger
	recorder Recorder
}

// NewLoop creates a display loop.
func NewLoop(src Source, r Renderer) *Loop {
	return &Loop{
		src:      src,
		renderer: r,
		logger:   noopLogger{},
		recorder: noopRecorder{},
	}
}

// SetLogger sets the logger.
func (l *Loop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetRecorder sets the event recorder.
func (l *Loop) SetRecorder(r Recorder) {
	if r != nil {
		l.recorder = r
	}
}

// Run renders readings until ctx is cancelled or the topic closes. Render
// failures are logged and skipped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("display loop started", "subscription", l.src.Name())
	defer l.logger.Info("display loop stopped")

	for {
		out, err := l.src.Next(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrClosed) && ctx.Err() == nil {
				l.logger.Error("subscription failed", "error", err)
			}
			return nil
		}

		switch out.Kind {
		case bus.Lagged:
			l.recorder.Lagged(l.src.Name(), out.Missed)
			l.logger.Warn("display lagged behind producer", "missed", out.Missed)
		case bus.Delivered:
			d := Digits(out.Reading.Temperature, out.Reading.Humidity)
			if err := l.renderer.Render(d); err != nil {
				l.recorder.RenderError()
				l.logger.Error("render failed", "error", err)
			}
		}
	}
}
