// Package api provides the HTTP status API and WebSocket feed of the node.
//
// The server follows the same lifecycle pattern as the other long-running
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/delivery"
	"github.com/knightpp/esp-sensor/internal/infrastructure/config"
	"github.com/knightpp/esp-sensor/internal/infrastructure/logging"
	"github.com/knightpp/esp-sensor/internal/infrastructure/metrics"
	"github.com/knightpp/esp-sensor/internal/link"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ReadingStore exposes bus history and counters. *bus.Topic satisfies it.
type ReadingStore interface {
	Latest() (sensor.Reading, bool)
	Published() uint64
	Stats() []bus.Stats
}

// Source yields bus outcomes for the WebSocket feed. *bus.Subscription satisfies it.
type Source interface {
	Name() string
	Next(ctx context.Context) (bus.Outcome, error)
}

// DeliveryStatus reports the delivery loop state. *delivery.Loop satisfies it.
type DeliveryStatus interface {
	State() delivery.State
}

// HealthChecker reports a link's health. *mqtt.Client satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LinkStatus reports the Wi-Fi daemon's state. *link.Supervisor satisfies it.
type LinkStatus interface {
	Stats() link.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Readings ReadingStore     // required
	Feed     Source           // optional: nil disables WebSocket broadcasts
	Delivery DeliveryStatus   // optional
	MQTT     HealthChecker    // optional
	Link     LinkStatus       // optional
	Metrics  *metrics.Metrics // optional: nil serves 404 on /metrics
	NodeID   string
	Version  string
}

// Server is the HTTP status server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	readings  ReadingStore
	feed      Source
	delivery  DeliveryStatus
	mqtt      HealthChecker
	link      LinkStatus
	metrics   *metrics.Metrics
	nodeID    string
	version   string
	startTime time.Time
	hub       *Hub

	handlerOnce sync.Once
	handler     http.Handler

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Readings == nil {
		return nil, fmt.Errorf("reading store is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		readings:  deps.Readings,
		feed:      deps.Feed,
		delivery:  deps.Delivery,
		mqtt:      deps.MQTT,
		link:      deps.Link,
		metrics:   deps.Metrics,
		nodeID:    deps.NodeID,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Handler returns the router. It is built once and shared with the listener.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.buildRouter()
	})
	return s.handler
}

// Start binds the listener and serves in the background. It also starts
// the WebSocket hub and, when a feed is configured, the feed loop.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.feed != nil {
		go s.runFeed(srvCtx)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Run starts the server, blocks until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// runFeed broadcasts every reading from the feed subscription to WebSocket
// clients until ctx is cancelled or the topic closes.
func (s *Server) runFeed(ctx context.Context) {
	for {
		out, err := s.feed.Next(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrClosed) && ctx.Err() == nil {
				s.logger.Error("websocket feed failed", "error", err)
			}
			return
		}

		switch out.Kind {
		case bus.Lagged:
			s.metrics.Lagged(s.feed.Name(), out.Missed)
			s.hub.Broadcast(ChannelLagged, map[string]uint64{"missed": out.Missed})
		case bus.Delivered:
			s.hub.Broadcast(ChannelReading, newReadingResponse(out.Reading))
		}
	}
}
