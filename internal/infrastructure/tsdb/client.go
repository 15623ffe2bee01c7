package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knightpp/esp-sensor/internal/delivery"
)

// Defaults for Config.
const (
	defaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a rejection body is kept.
	maxErrorBody = 1024
)

// Config describes the remote write endpoint.
type Config struct {
	// URL is the server base URL, e.g. http://influx.local:8086.
	URL    string
	Token  string
	Org    string
	Bucket string

	// Timeout bounds dial, health check and each write. Also used as the
	// idle timeout of the pooled connection.
	Timeout time.Duration

	// SkipHealthCheck dials without probing GET /health.
	SkipHealthCheck bool
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Dialer opens HTTP sessions to an InfluxDB v2 compatible write endpoint.
//
// Each Dial resolves the endpoint host to a single IPv4 address and pins
// the session's connections to it; a reconnect resolves again.
type Dialer struct {
	cfg      Config
	base     *url.URL
	writeURL string
	resolver Resolver
}

// NewDialer validates cfg and prepares the write URL.
func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, base.Scheme)
	}
	if base.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return &Dialer{
		cfg:      cfg,
		base:     base,
		writeURL: WriteURL(base.String(), cfg.Org, cfg.Bucket),
		resolver: net.DefaultResolver,
	}, nil
}

// WriteURL returns the v2 write endpoint for org and bucket with
// nanosecond precision.
func WriteURL(base, org, bucket string) string {
	q := url.Values{}
	q.Set("org", org)
	q.Set("bucket", bucket)
	q.Set("precision", "ns")
	return strings.TrimRight(base, "/") + "/api/v2/write?" + q.Encode()
}

// SetResolver replaces the DNS resolver.
func (d *Dialer) SetResolver(r Resolver) {
	if r != nil {
		d.resolver = r
	}
}

// Dial resolves the endpoint, builds a pinned HTTP client and, unless
// disabled, verifies the server with GET /health.
func (d *Dialer) Dial(ctx context.Context) (delivery.Session, error) {
	addr, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: d.cfg.Timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       d.cfg.Timeout,
		TLSHandshakeTimeout:   d.cfg.Timeout,
		ResponseHeaderTimeout: d.cfg.Timeout,
	}

	s := &Session{
		client: &http.Client{
			Transport: transport,
			Timeout:   d.cfg.Timeout,
		},
		transport: transport,
		base:      d.base.String(),
		writeURL:  d.writeURL,
		token:     d.cfg.Token,
		addr:      addr,
	}

	if !d.cfg.SkipHealthCheck {
		if err := s.HealthCheck(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}
	return s, nil
}

// resolve returns host:port for the first IPv4 address of the endpoint.
func (d *Dialer) resolve(ctx context.Context) (string, error) {
	host := d.base.Hostname()
	port := d.base.Port()
	if port == "" {
		port = "80"
		if d.base.Scheme == "https" {
			port = "443"
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return "", fmt.Errorf("%w: %s is not IPv4", ErrResolve, host)
		}
		return net.JoinHostPort(ip.String(), port), nil
	}

	ips, err := d.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResolve, host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return net.JoinHostPort(v4.String(), port), nil
		}
	}
	return "", fmt.Errorf("%w: %s has no A record", ErrResolve, host)
}

// Session is one pinned HTTP connection pool to the write endpoint.
//
// Thread Safety: Write may be called concurrently, but the delivery loop
// uses a session from a single goroutine.
type Session struct {
	client    *http.Client
	transport *http.Transport
	base      string
	writeURL  string
	token     string
	addr      string
}

// Addr returns the resolved address the session is pinned to.
func (s *Session) Addr() string { return s.addr }

// HealthCheck verifies the server answers GET /health with 200.
func (s *Session) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// Write POSTs one line-protocol record. Any 2xx status is success,
// including the 204 InfluxDB returns for an accepted write. Other
// statuses return *WriteError carrying the start of the response body;
// network failures wrap ErrWriteFailed.
func (s *Session) Write(ctx context.Context, record []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.writeURL, bytes.NewReader(record))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Authorization", "Token "+s.token)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &WriteError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// Close drops pooled connections.
func (s *Session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
