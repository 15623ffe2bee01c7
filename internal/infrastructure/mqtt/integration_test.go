//go:build integration

package mqtt

import (
	"errors"
	"testing"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectPublishClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = ""

	client, err := Connect(cfg, "integration")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if client.ClientID() == "" {
		t.Error("ClientID() should be generated when not configured")
	}

	err = client.PublishRetained(client.Topics().Reading(), []byte(`{"temperature":21.5,"humidity":40}`))
	if err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Publish("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg, "integration"); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
