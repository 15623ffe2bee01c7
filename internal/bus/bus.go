package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/knightpp/esp-sensor/internal/sensor"
)

// Defaults for Config.
const (
	DefaultCapacity       = 4
	DefaultMaxSubscribers = 8
)

// Config sizes a Topic.
type Config struct {
	// Capacity is the per-subscriber queue length.
	Capacity int

	// MaxSubscribers bounds the number of subscriptions.
	MaxSubscribers int
}

// Kind distinguishes the outcomes of Next.
type Kind int

const (
	// Delivered carries a reading.
	Delivered Kind = iota + 1

	// Lagged reports readings dropped because the subscriber fell behind.
	Lagged
)

func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Lagged:
		return "lagged"
	default:
		return "unknown"
	}
}

// Outcome is the result of Subscription.Next.
type Outcome struct {
	Kind Kind

	// Reading is set when Kind is Delivered.
	Reading sensor.Reading

	// Missed is the number of dropped readings when Kind is Lagged.
	Missed uint64
}

// Stats are per-subscription counters.
type Stats struct {
	Name      string `json:"name"`
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Topic is a single-producer, multi-consumer broadcast of readings.
type Topic struct {
	capacity       int
	maxSubscribers int

	mu        sync.Mutex
	subs      []*Subscription
	sealed    bool
	closed    bool
	latest    sensor.Reading
	hasLatest bool
	published uint64
}

// New creates a Topic. Zero values in cfg take the defaults.
func New(cfg Config) *Topic {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxSubscribers <= 0 {
		cfg.MaxSubscribers = DefaultMaxSubscribers
	}
	return &Topic{
		capacity:       cfg.Capacity,
		maxSubscribers: cfg.MaxSubscribers,
	}
}

// Subscribe registers a named consumer. It must be called before the first
// Publish.
func (t *Topic) Subscribe(name string) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return nil, fmt.Errorf("%w: %s", ErrSealed, name)
	}
	if len(t.subs) >= t.maxSubscribers {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySubscribers, t.maxSubscribers)
	}
	for _, s := range t.subs {
		if s.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSubscriber, name)
		}
	}

	s := &Subscription{
		name:   name,
		topic:  t,
		ring:   make([]sensor.Reading, t.capacity),
		notify: make(chan struct{}, 1),
	}
	t.subs = append(t.subs, s)
	return s, nil
}

// Publish stores r as the latest reading and enqueues it for every
// subscriber. It never blocks on consumers.
func (t *Topic) Publish(r sensor.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.sealed = true
	t.latest = r
	t.hasLatest = true
	t.published++

	for _, s := range t.subs {
		s.push(r)
	}
}

// Latest returns the most recently published reading.
func (t *Topic) Latest() (sensor.Reading, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasLatest
}

// Published returns the number of readings published so far.
func (t *Topic) Published() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.published
}

// Stats returns a snapshot of every subscription's counters.
func (t *Topic) Stats() []Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Stats, 0, len(t.subs))
	for _, s := range t.subs {
		out = append(out, s.statsLocked())
	}
	return out
}

// Close stops accepting readings. Subscribers drain what is buffered and
// then receive ErrClosed.
func (t *Topic) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.sealed = true
	for _, s := range t.subs {
		s.wake()
	}
}

// Subscription is one consumer's view of a Topic.
type Subscription struct {
	name  string
	topic *Topic

	// Guarded by topic.mu.
	ring      []sensor.Reading
	head      int
	count     int
	missed    uint64
	delivered uint64
	dropped   uint64

	notify chan struct{}
}

// Name returns the subscription name.
func (s *Subscription) Name() string { return s.name }

// Next waits for the next outcome. A pending lag is reported before any
// buffered reading. It returns ctx.Err() when ctx is done and ErrClosed
// once the topic is closed and the buffer is empty.
func (s *Subscription) Next(ctx context.Context) (Outcome, error) {
	for {
		out, ok, err := s.poll()
		if ok || err != nil {
			return out, err
		}

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// tryNext returns the next outcome without waiting.
func (s *Subscription) tryNext() (Outcome, bool) {
	out, ok, _ := s.poll()
	return out, ok
}

// Stats returns this subscription's counters.
func (s *Subscription) Stats() Stats {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	return s.statsLocked()
}

func (s *Subscription) poll() (Outcome, bool, error) {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()

	if s.missed > 0 {
		n := s.missed
		s.missed = 0
		return Outcome{Kind: Lagged, Missed: n}, true, nil
	}
	if s.count > 0 {
		r := s.ring[s.head]
		s.ring[s.head] = sensor.Reading{}
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		s.delivered++
		return Outcome{Kind: Delivered, Reading: r}, true, nil
	}
	if s.topic.closed {
		return Outcome{}, false, ErrClosed
	}
	return Outcome{}, false, nil
}

// push must be called with topic.mu held.
func (s *Subscription) push(r sensor.Reading) {
	if s.count == len(s.ring) {
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		s.missed++
		s.dropped++
	}
	s.ring[(s.head+s.count)%len(s.ring)] = r
	s.count++
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) statsLocked() Stats {
	return Stats{
		Name:      s.name,
		Queued:    s.count,
		Delivered: s.delivered,
		Dropped:   s.dropped,
	}
}
