package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/lineproto"
)

// Defaults for Config.
const (
	DefaultRetryInterval = 10 * time.Second
	DefaultTimeout       = 10 * time.Second
)

// Write results passed to Recorder.DeliveryWrite.
const (
	resultOK             = "ok"
	resultAPIError       = "api_error"
	resultTransportError = "transport_error"
	resultEncodeError    = "encode_error"
)

// Source yields bus outcomes. *bus.Subscription satisfies it.
type Source interface {
	Name() string
	Next(ctx context.Context) (bus.Outcome, error)
}

// Recorder receives delivery events. *metrics.Metrics satisfies it.
type Recorder interface {
	DeliveryWrite(result string)
	DeliveryConnect(ok bool)
	DeliveryState(code int)
	Lagged(subscriber string, n uint64)
}

// Logger defines the logging interface for the delivery loop.
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

func (noopRecorder) DeliveryWrite(string)  {}
func (noopRecorder) DeliveryConnect(bool)  {}
func (noopRecorder) DeliveryState(int)     {}
func (noopRecorder) Lagged(string, uint64) {}

// Config holds delivery loop settings.
type Config struct {
	Record RecordConfig

	// RetryInterval is the wait after a failed dial.
	RetryInterval time.Duration

	// Timeout bounds each dial and write.
	Timeout time.Duration

	// BufferSize is the record buffer capacity in bytes.
	BufferSize int
}

// Loop moves readings from a Source to Sessions opened by a Dialer.
type Loop struct {
	src      Source
	dialer   Dialer
	cfg      Config
	encoder  *recordEncoder
	buf      *lineproto.Buffer
	logger   Logger
	recorder Recorder

	state atomic.Int32
}

// New creates a delivery loop. Zero values in cfg take the defaults.
func New(src Source, dialer Dialer, cfg Config) *Loop {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = lineproto.DefaultBufferSize
	}
	return &Loop{
		src:      src,
		dialer:   dialer,
		cfg:      cfg,
		encoder:  newRecordEncoder(cfg.Record),
		buf:      lineproto.NewBuffer(cfg.BufferSize),
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

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	if State(l.state.Swap(int32(s))) != s {
		l.recorder.DeliveryState(int(s))
	}
}

// Run delivers readings until ctx is cancelled or the source is closed.
// Failures are logged and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("delivery loop started",
		"subscription", l.src.Name(),
		"retry_interval", l.cfg.RetryInterval,
	)
	defer l.logger.Info("delivery loop stopped")

	for {
		session := l.connect(ctx)
		if session == nil {
			return nil
		}
		if done := l.serve(ctx, session); done {
			return nil
		}
	}
}

// connect dials until a session opens. It returns nil once ctx is done.
func (l *Loop) connect(ctx context.Context) Session {
	for {
		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return nil
		}

		l.setState(StateConnecting)
		dctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
		session, err := l.dialer.Dial(dctx)
		cancel()

		if err == nil {
			l.recorder.DeliveryConnect(true)
			l.setState(StateConnected)
			l.logger.Info("connected")
			return session
		}

		l.recorder.DeliveryConnect(false)
		l.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("connect failed", "error", err, "retry_in", l.cfg.RetryInterval)

		t := time.NewTimer(l.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// serve consumes the source over one session. It closes the session before
// returning and reports whether the loop should stop.
func (l *Loop) serve(ctx context.Context, session Session) bool {
	defer func() {
		if err := session.Close(); err != nil {
			l.logger.Debug("closing session", "error", err)
		}
		l.setState(StateDisconnected)
	}()

	for {
		out, err := l.src.Next(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrClosed) && ctx.Err() == nil {
				l.logger.Error("subscription failed", "error", err)
			}
			return true
		}

		switch out.Kind {
		case bus.Lagged:
			l.recorder.Lagged(l.src.Name(), out.Missed)
			l.logger.Warn("delivery lagged behind producer", "missed", out.Missed)
		case bus.Delivered:
			if ok := l.deliver(ctx, session, out); !ok {
				return ctx.Err() != nil
			}
		}
	}
}

// deliver encodes and writes one reading. It returns false when the session
// must be discarded.
func (l *Loop) deliver(ctx context.Context, session Session, out bus.Outcome) bool {
	if err := l.encoder.encode(l.buf, out.Reading); err != nil {
		l.recorder.DeliveryWrite(resultEncodeError)
		l.logger.Error("encoding record failed", "error", err)
		return true
	}

	l.setState(StateSending)
	wctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	err := session.Write(wctx, l.buf.Bytes())
	cancel()

	if err == nil {
		l.recorder.DeliveryWrite(resultOK)
		l.setState(StateConnected)
		l.logger.Debug("record delivered", "bytes", l.buf.Len())
		return true
	}

	if status, ok := APIStatus(err); ok {
		l.recorder.DeliveryWrite(resultAPIError)
		l.setState(StateConnected)
		l.logger.Error("failed request", "status", status, "error", err)
		return true
	}

	l.recorder.DeliveryWrite(resultTransportError)
	if ctx.Err() == nil {
		l.logger.Warn("transport failure, reconnecting", "error", err)
	}
	return false
}
