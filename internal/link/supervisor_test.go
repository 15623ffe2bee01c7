package link

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knightpp/esp-sensor/internal/infrastructure/config"
)

func waitDone(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish")
	}
}

func TestNewSupervisor_Defaults(t *testing.T) {
	s := NewSupervisor(Config{Name: "wpa", Binary: "/usr/sbin/wpa_supplicant"})

	if s.cfg.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want 5s", s.cfg.RestartDelay)
	}
	if s.cfg.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want 10s", s.cfg.GracefulTimeout)
	}
	if s.cfg.HealthCheckInterval != 30*time.Second {
		t.Errorf("HealthCheckInterval = %v, want 30s", s.cfg.HealthCheckInterval)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.SupervisorConfig{
		Binary:              "/usr/sbin/wpa_supplicant",
		Interface:           "wlan0",
		ConfigFile:          "/etc/wpa_supplicant/wpa_supplicant.conf",
		RestartDelay:        5,
		MaxRestartAttempts:  3,
		HealthCheckInterval: 30,
	})

	if cfg.Name != "wpa_supplicant" || cfg.Binary != "/usr/sbin/wpa_supplicant" {
		t.Errorf("Name/Binary = %q/%q", cfg.Name, cfg.Binary)
	}
	if got := strings.Join(cfg.Args, " "); got != "-i wlan0 -c /etc/wpa_supplicant/wpa_supplicant.conf" {
		t.Errorf("Args = %q", got)
	}
	if cfg.RestartDelay != 5*time.Second || cfg.HealthCheckInterval != 30*time.Second {
		t.Errorf("durations = %v/%v", cfg.RestartDelay, cfg.HealthCheckInterval)
	}
	if cfg.MaxRestartAttempts != 3 {
		t.Errorf("MaxRestartAttempts = %d, want 3", cfg.MaxRestartAttempts)
	}
	if cfg.HealthCheck == nil {
		t.Error("HealthCheck should be set")
	}
}

func TestOperStateCheck(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "wlan0"), 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(state string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, "wlan0", "operstate"), []byte(state+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	check := OperStateCheck(root, "wlan0")

	write("up")
	if err := check(context.Background()); err != nil {
		t.Errorf("check(up) error = %v", err)
	}

	write("dormant")
	if err := check(context.Background()); !errors.Is(err, ErrLinkDown) {
		t.Errorf("check(dormant) error = %v, want ErrLinkDown", err)
	}

	if err := OperStateCheck(root, "wlan1")(context.Background()); err == nil || errors.Is(err, ErrLinkDown) {
		t.Errorf("check(missing) error = %v, want read error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := check(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("check(cancelled) error = %v", err)
	}
}

func TestSupervisor_InitialState(t *testing.T) {
	s := NewSupervisor(Config{Name: "test", Binary: "/bin/true"})

	want := Stats{Name: "test", Status: StatusStopped}
	if got := s.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on stopped supervisor error = %v", err)
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	s := NewSupervisor(Config{
		Name:            "test-sleep",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := s.Stats(); st.Status != StatusRunning || st.PID == 0 {
		t.Errorf("after Start: %+v", st)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitDone(t, s)

	st := s.Stats()
	if st.Status != StatusStopped || st.PID != 0 {
		t.Errorf("after Stop: %+v", st)
	}
	if st.Restarts != 0 {
		t.Errorf("Restarts = %d, want 0 after requested stop", st.Restarts)
	}
}

func TestSupervisor_InvalidBinary(t *testing.T) {
	s := NewSupervisor(Config{Name: "bad", Binary: "/nonexistent/binary"})

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid binary expected error")
	}
	st := s.Stats()
	if st.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", st.Status, StatusFailed)
	}
	if st.LastError == "" {
		t.Error("LastError should be set")
	}
}

func TestSupervisor_RestartsWithFixedDelay(t *testing.T) {
	s := NewSupervisor(Config{
		Name:               "crashy",
		Binary:             "/bin/sh",
		Args:               []string{"-c", "exit 1"},
		RestartDelay:       10 * time.Millisecond,
		MaxRestartAttempts: 2,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, s)

	st := s.Stats()
	if st.Restarts != 2 {
		t.Errorf("Restarts = %d, want 2", st.Restarts)
	}
	if st.Status != StatusFailed || !strings.Contains(st.LastError, "exit status 1") {
		t.Errorf("Stats() = %+v, want failed with exit status 1", st)
	}
}

func TestSupervisor_HealthCheckKillsDaemon(t *testing.T) {
	s := NewSupervisor(Config{
		Name:                "hung",
		Binary:              "/bin/sleep",
		Args:                []string{"60"},
		RestartDelay:        10 * time.Millisecond,
		MaxRestartAttempts:  1,
		HealthCheckInterval: 10 * time.Millisecond,
		HealthCheck: func(context.Context) error {
			return ErrLinkDown
		},
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, s)

	st := s.Stats()
	if st.Restarts != 1 || st.Status != StatusFailed {
		t.Errorf("Stats() = %+v, want failed after 1 restart", st)
	}
	if !strings.Contains(st.LastError, "failed health checks") {
		t.Errorf("LastError = %q, want health check failure", st.LastError)
	}
}

func TestSupervisor_Run(t *testing.T) {
	s := NewSupervisor(Config{
		Name:            "run",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Status != StatusRunning {
		if time.Now().After(deadline) {
			t.Fatal("daemon never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
	if got := s.Stats().Status; got != StatusStopped {
		t.Errorf("Status = %q, want %q", got, StatusStopped)
	}
}
