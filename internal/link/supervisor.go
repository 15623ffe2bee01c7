package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the supervised daemon's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	outputBufferSize = 4096

	// failedChecksBeforeKill consecutive link-down checks kill the daemon.
	failedChecksBeforeKill = 3

	healthCheckTimeout = 5 * time.Second
)

// Config describes the daemon to supervise.
type Config struct {
	// Name identifies the daemon in logs and Stats.
	Name   string
	Binary string
	Args   []string

	// RestartDelay is the fixed wait before each restart.
	RestartDelay time.Duration

	// MaxRestartAttempts caps restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is the wait between SIGTERM and SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheck runs every HealthCheckInterval while the daemon is up.
	// nil disables health checking.
	HealthCheck         func(ctx context.Context) error
	HealthCheckInterval time.Duration
}

// Logger defines the logging interface for the supervisor.
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

// Supervisor keeps one daemon running, restarting it when it exits or its
// link stays down.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	status   Status
	restarts int
	lastErr  error
	started  time.Time
	stopping bool

	// done is closed when supervision of the current Start ends.
	done chan struct{}
}

// NewSupervisor creates a supervisor, filling zero durations with defaults.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	return &Supervisor{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run starts the daemon, blocks until ctx is done, then stops it
// gracefully. A daemon that cannot be started at all is an error.
func (s *Supervisor) Run(ctx context.Context) error {
	// The daemon outlives ctx by the graceful shutdown window.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.Start(runCtx); err != nil {
		return err
	}

	<-ctx.Done()
	return s.Stop()
}

// Start launches the daemon and supervises it in the background.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	s.status = StatusStarting
	s.stopping = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	if err := s.spawn(ctx); err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()
		close(done)
		return err
	}

	go s.supervise(ctx, done)
	return nil
}

func (s *Supervisor) spawn(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args...) //nolint:gosec // Binary comes from validated config
	// Own process group so shutdown signals reach every child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.started = time.Now()
	s.mu.Unlock()

	go s.logOutput("stdout", stdout)
	go s.logOutput("stderr", stderr)

	s.logger.Info("daemon started",
		"name", s.cfg.Name,
		"pid", cmd.Process.Pid,
		"args", s.cfg.Args,
	)
	return nil
}

func (s *Supervisor) logOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.logger.Debug("daemon output", "name", s.cfg.Name, "stream", stream, "output", string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// wait blocks until cmd exits. With a health check configured, the daemon
// is killed after failedChecksBeforeKill consecutive failures.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if s.cfg.HealthCheck == nil {
		return <-exited
	}

	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return <-exited
		case <-ticker.C:
		}

		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := s.cfg.HealthCheck(checkCtx)
		cancel()

		if err == nil {
			if failures > 0 {
				s.logger.Info("link recovered", "name", s.cfg.Name, "after_failures", failures)
			}
			failures = 0
			continue
		}

		failures++
		s.logger.Warn("health check failed", "name", s.cfg.Name, "error", err, "consecutive", failures)
		if failures < failedChecksBeforeKill {
			continue
		}

		s.logger.Error("link down too long, killing daemon", "name", s.cfg.Name)
		cmd.Process.Kill() //nolint:errcheck // the exit is observed below
		select {
		case <-exited:
			return fmt.Errorf("killed after %d failed health checks: %w", failures, err)
		case <-time.After(healthCheckTimeout):
			return fmt.Errorf("daemon survived kill after %d failed health checks", failures)
		}
	}
}

func (s *Supervisor) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// supervise waits for each run of the daemon and restarts it until a stop
// is requested or the restart budget is spent.
func (s *Supervisor) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		s.mu.Lock()
		cmd := s.cmd
		s.mu.Unlock()

		err := s.wait(ctx, cmd)

		s.mu.Lock()
		if s.stopping || ctx.Err() != nil {
			s.status = StatusStopped
			s.mu.Unlock()
			s.logger.Info("daemon stopped", "name", s.cfg.Name)
			return
		}
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Warn("daemon exited", "name", s.cfg.Name, "error", err)

		if !s.restart(ctx) {
			return
		}
	}
}

// restart waits RestartDelay and spawns the daemon again, repeating while
// spawning fails. It reports whether the daemon is running again.
func (s *Supervisor) restart(ctx context.Context) bool {
	for {
		s.mu.Lock()
		if limit := s.cfg.MaxRestartAttempts; limit > 0 && s.restarts >= limit {
			s.mu.Unlock()
			s.logger.Error("giving up on daemon", "name", s.cfg.Name, "restarts", limit)
			return false
		}
		s.restarts++
		attempt := s.restarts
		s.mu.Unlock()

		s.logger.Info("restarting daemon", "name", s.cfg.Name, "attempt", attempt, "delay", s.cfg.RestartDelay)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.RestartDelay):
		}

		if s.stopRequested() {
			s.mu.Lock()
			s.status = StatusStopped
			s.mu.Unlock()
			return false
		}

		err := s.spawn(ctx)
		if err == nil {
			return true
		}
		s.logger.Error("restart failed", "name", s.cfg.Name, "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
}

// Stop sends SIGTERM to the daemon's process group and SIGKILL after
// GracefulTimeout. Pending restarts are cancelled.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.stopping = true
	status, cmd, done := s.status, s.cmd, s.done
	s.mu.Unlock()

	if done == nil || status != StatusRunning || cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping daemon", "name", s.cfg.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("SIGTERM failed", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		s.logger.Warn("daemon ignored SIGTERM, killing", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", s.cfg.Name, err)
	}
	<-done
	return nil
}

// Stats is a snapshot of the supervised daemon, reported by the status API.
type Stats struct {
	Name          string `json:"name"`
	Status        Status `json:"status"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Restarts      int    `json:"restarts"`
	LastError     string `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the daemon's state.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.UptimeSeconds = int64(time.Since(s.started).Seconds())
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
