package ratelimit

import "testing"

func TestAdaptiveController_ClampsHighLoad(t *testing.T) {
	c := NewAdaptiveController(AdaptiveConfig{
		Scale:  2.0,
		Signal: func() float64 { return 1.5 }, // raw factor 3.0
	})

	c.sample()

	if got := c.LoadFactor(); got != 2.0 {
		t.Fatalf("expected load factor clamped to 2.0, got %v", got)
	}
	if got := c.EffectiveMax(1000); got != 500 {
		t.Fatalf("expected effective max 500 under clamped load, got %d", got)
	}
}

func TestAdaptiveController_ClampsLowLoad(t *testing.T) {
	c := NewAdaptiveController(AdaptiveConfig{
		Scale:  2.0,
		Signal: func() float64 { return 0.0 },
	})

	c.sample()

	if got := c.LoadFactor(); got != 0.5 {
		t.Fatalf("expected load factor clamped to 0.5, got %v", got)
	}
	// Low load raises the effective limit
	if got := c.EffectiveMax(1000); got != 2000 {
		t.Fatalf("expected effective max 2000 under low load, got %d", got)
	}
}

func TestAdaptiveController_NeutralBeforeFirstSample(t *testing.T) {
	c := NewAdaptiveController(AdaptiveConfig{})

	if got := c.LoadFactor(); got != 1.0 {
		t.Fatalf("expected neutral load factor before sampling, got %v", got)
	}
	if got := c.EffectiveMax(1000); got != 1000 {
		t.Fatalf("expected base limit before sampling, got %d", got)
	}
}

func TestAdaptiveController_StartStop(t *testing.T) {
	c := NewAdaptiveController(AdaptiveConfig{
		Signal: func() float64 { return 0.9 },
	})

	c.Start()
	c.Start() // second start is a no-op

	// Start samples immediately: 0.9 * 2.0 = 1.8
	if got := c.LoadFactor(); got != 1.8 {
		t.Fatalf("expected load factor 1.8 after start, got %v", got)
	}

	c.Stop()
	c.Stop() // second stop must not panic
}
