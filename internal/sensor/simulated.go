package sensor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SimulatedConfig seeds the simulated driver. A zero seed uses a random one.
type SimulatedConfig struct {
	Seed uint64
}

// Simulated produces a bounded random walk around room conditions.
type Simulated struct {
	mu   sync.Mutex
	rng  *rand.Rand
	temp float32
	hum  float32
}

// NewSimulated returns a simulated driver starting at 21.0 C / 50.0 %.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulated{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		temp: 21.0,
		hum:  50.0,
	}
}

// Read advances the walk by at most 0.5 C and 1 %RH.
func (s *Simulated) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.temp = clamp(s.temp+float32(s.rng.Float64()-0.5), 10, 35)
	s.hum = clamp(s.hum+2*float32(s.rng.Float64()-0.5), 20, 80)

	return Reading{Temperature: s.temp, Humidity: s.hum, At: time.Now()}, nil
}

// Close is a no-op.
func (s *Simulated) Close() error { return nil }

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
