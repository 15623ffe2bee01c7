package influxdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/knightpp/esp-sensor/internal/delivery"
)

const defaultTimeout = 10 * time.Second

// Config describes the InfluxDB server and destination.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Dialer opens sessions backed by the official InfluxDB v2 client.
type Dialer struct {
	cfg Config
}

// NewDialer returns a Dialer for cfg.
func NewDialer(cfg Config) *Dialer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Dialer{cfg: cfg}
}

// Dial creates a client, verifies the server with a ping and returns a
// session using the blocking write API.
func (d *Dialer) Dial(ctx context.Context) (delivery.Session, error) {
	// #nosec G115 -- timeout is positive
	client := influxdb2.NewClientWithOptions(
		d.cfg.URL,
		d.cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(d.cfg.Timeout/time.Second)).
			SetPrecision(time.Nanosecond),
	)

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Session{
		client: client,
		writer: client.WriteAPIBlocking(d.cfg.Org, d.cfg.Bucket),
	}, nil
}

// Session writes single records through the blocking write API.
//
// Thread Safety: safe for concurrent use.
type Session struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking

	mu     sync.RWMutex
	closed bool
}

// Write sends one line-protocol record. A response with an HTTP status
// returns *WriteError; anything else wraps ErrWriteFailed.
func (s *Session) Write(ctx context.Context, record []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	err := s.writer.WriteRecord(ctx, strings.TrimSuffix(string(record), "\n"))
	if err == nil {
		return nil
	}

	var herr *http.Error
	if errors.As(err, &herr) && herr.StatusCode > 0 {
		return &WriteError{
			Status:  herr.StatusCode,
			Code:    herr.Code,
			Message: herr.Message,
		}
	}
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}

// Close releases the client. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}
