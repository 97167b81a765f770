package ratelimit

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minLoadFactor = 0.5
	maxLoadFactor = 2.0
)

// AdaptiveConfig configures the load sampler.
type AdaptiveConfig struct {
	Interval time.Duration  // sampling interval (default: 10s)
	Scale    float64        // multiplier applied to the raw signal (default: 2.0)
	Signal   func() float64 // load signal in [0,1] (default: heap utilization)
}

// AdaptiveController periodically samples a load signal and publishes a
// clamped load factor. Load-sensitive policies divide their base limit
// by the latest factor; nothing is recomputed per request.
type AdaptiveController struct {
	interval time.Duration
	scale    float64
	signal   func() float64

	factorBits atomic.Uint64

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

func NewAdaptiveController(cfg AdaptiveConfig) *AdaptiveController {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2.0
	}
	if cfg.Signal == nil {
		cfg.Signal = heapLoadSignal
	}

	c := &AdaptiveController{
		interval: cfg.Interval,
		scale:    cfg.Scale,
		signal:   cfg.Signal,
		stopChan: make(chan struct{}),
	}

	// Neutral until the first sample.
	c.factorBits.Store(math.Float64bits(1.0))

	return c
}

// Start samples immediately, then on the interval until Stop.
func (c *AdaptiveController) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.sample()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.sample()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts sampling. The last published factor stays in effect.
func (c *AdaptiveController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
	}
}

func (c *AdaptiveController) sample() {
	factor := c.signal() * c.scale
	if factor < minLoadFactor {
		factor = minLoadFactor
	}
	if factor > maxLoadFactor {
		factor = maxLoadFactor
	}

	c.factorBits.Store(math.Float64bits(factor))
}

// LoadFactor returns the latest published factor, in [0.5, 2.0].
func (c *AdaptiveController) LoadFactor() float64 {
	return math.Float64frombits(c.factorBits.Load())
}

// EffectiveMax shrinks base by the current load factor.
func (c *AdaptiveController) EffectiveMax(base int) int {
	return int(math.Floor(float64(base) / c.LoadFactor()))
}

// heapLoadSignal reports heap utilization as the default load signal.
func heapLoadSignal() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys)
}
