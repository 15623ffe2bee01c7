package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    int
	topics  []string
	payload chan []byte
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	p.mu.Lock()
	if p.fail > 0 {
		p.fail--
		p.mu.Unlock()
		return errors.New("mqtt: client not connected")
	}
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
	p.payload <- payload
	return nil
}

type countRecorder struct {
	mu     sync.Mutex
	ok     int
	failed int
	lagged uint64
}

func (c *countRecorder) RelayPublish(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

func (c *countRecorder) Lagged(_ string, n uint64) {
	c.mu.Lock()
	c.lagged += n
	c.mu.Unlock()
}

func TestEncode(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.FixedZone("EET", 2*3600))
	data, err := Encode("gh-1", sensor.Reading{Temperature: 21.5, Humidity: 40.25, At: at})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"node_id":"gh-1","temperature":21.5,"humidity":40.25,"timestamp":"2026-01-02T13:04:05Z"}`
	if string(data) != want {
		t.Errorf("Encode() = %s\nwant %s", data, want)
	}
}

func TestRelayForwardsReadings(t *testing.T) {
	topic := bus.New(bus.Config{Capacity: 4})
	sub, err := topic.Subscribe("relay")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pub := &fakePublisher{fail: 1, payload: make(chan []byte, 8)}
	rec := &countRecorder{}
	r := New(sub, pub, "sensornode/gh-1/reading", "gh-1")
	r.SetRecorder(rec)

	// Six readings into four slots: lag of two, then the first publish fails.
	for i := 1; i <= 6; i++ {
		topic.Publish(sensor.Reading{Temperature: float32(i), Humidity: 50})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for _, want := range []float32{4, 5, 6} {
		select {
		case payload := <-pub.payload:
			var m Message
			if err := json.Unmarshal(payload, &m); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if m.Temperature != want || m.NodeID != "gh-1" {
				t.Errorf("message = %+v, want temperature %v", m, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reading %v", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.ok != 3 || rec.failed != 1 {
		t.Errorf("publishes ok=%d failed=%d, want 3/1", rec.ok, rec.failed)
	}
	if rec.lagged != 2 {
		t.Errorf("lagged = %d, want 2", rec.lagged)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, tp := range pub.topics {
		if tp != "sensornode/gh-1/reading" {
			t.Errorf("published to %q", tp)
		}
	}
}

func TestRelayStopsOnClose(t *testing.T) {
	topic := bus.New(bus.Config{})
	sub, err := topic.Subscribe("relay")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	r := New(sub, &fakePublisher{payload: make(chan []byte, 1)}, "t", "n")
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	topic.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after Close")
	}
}
