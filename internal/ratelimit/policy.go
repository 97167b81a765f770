package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// FailMode selects the behavior when the counter store is unreachable.
type FailMode string

const (
	// FailOpen allows the request when the store is down.
	FailOpen FailMode = "open"
	// FailClosed denies the request when the store is down.
	FailClosed FailMode = "closed"
)

// PolicyConfig binds one fixed-window limit to a key dimension.
// Configs are immutable after NewPolicy.
type PolicyConfig struct {
	ID          string
	Window      time.Duration
	MaxRequests int

	// Adaptive shrinks MaxRequests by the controller's load factor.
	Adaptive bool

	KeyFunc KeyFunc
	// SkipFunc short-circuits to allowed with no store access
	// (health checks and the like). Optional.
	SkipFunc func(req *Request) bool

	FailMode FailMode
}

// Policy evaluates requests against a fixed-window counter.
//
// Fixed windows reset fully at epoch-aligned boundaries, which permits
// up to 2x MaxRequests to land close together across a boundary. That
// trade-off is deliberate; smoothing it into a sliding window would
// change the observable limits.
type Policy struct {
	cfg      PolicyConfig
	store    CounterStore
	adaptive *AdaptiveController
	now      func() time.Time
}

func NewPolicy(cfg PolicyConfig, store CounterStore, adaptive *AdaptiveController) (*Policy, error) {
	if cfg.ID == "" {
		return nil, errors.New("policy id is required")
	}
	if cfg.Window < time.Second {
		return nil, fmt.Errorf("policy %s: window must be at least one second", cfg.ID)
	}
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("policy %s: max requests must be positive", cfg.ID)
	}
	if store == nil {
		return nil, fmt.Errorf("policy %s: counter store is required", cfg.ID)
	}
	if cfg.Adaptive && adaptive == nil {
		return nil, fmt.Errorf("policy %s: adaptive policy needs a controller", cfg.ID)
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.FailMode == "" {
		cfg.FailMode = FailOpen
	}

	return &Policy{
		cfg:      cfg,
		store:    store,
		adaptive: adaptive,
		now:      time.Now,
	}, nil
}

// ID returns the policy id.
func (p *Policy) ID() string {
	return p.cfg.ID
}

// Window returns the window length.
func (p *Policy) Window() time.Duration {
	return p.cfg.Window
}

// Limit returns the effective maximum, after the adaptive load factor
// when the policy is load-sensitive.
func (p *Policy) Limit() int {
	if p.cfg.Adaptive {
		return p.adaptive.EffectiveMax(p.cfg.MaxRequests)
	}
	return p.cfg.MaxRequests
}

// Apply produces exactly one decision for req. It never returns an
// error and never panics: store failures resolve through the policy's
// fail mode.
func (p *Policy) Apply(ctx context.Context, req *Request) Decision {
	now := p.now()
	max := p.Limit()

	windowMs := p.cfg.Window.Milliseconds()
	startMs := now.UnixMilli() - now.UnixMilli()%windowMs
	resetAt := time.UnixMilli(startMs + windowMs)

	if p.cfg.SkipFunc != nil && p.cfg.SkipFunc(req) {
		return Decision{
			Allowed:   true,
			PolicyID:  p.cfg.ID,
			Limit:     max,
			Remaining: max,
			ResetAt:   resetAt,
		}
	}

	// Key includes the window index, so a TTL slightly longer than
	// the remaining window can never bleed counts into the next one.
	key := fmt.Sprintf("ratelimit:%s:%s:%d", p.cfg.ID, p.cfg.KeyFunc(req), startMs/windowMs)

	count, err := p.store.Increment(ctx, key, p.cfg.Window)
	if err != nil {
		return p.failDecision(now, resetAt, max, err)
	}

	d := Decision{
		Allowed:   count <= int64(max),
		PolicyID:  p.cfg.ID,
		Limit:     max,
		Count:     count,
		Remaining: remaining(max, count),
		ResetAt:   resetAt,
	}

	if !d.Allowed {
		d.RetryAfterSeconds = ceilSeconds(resetAt.Sub(now))
	}

	return d
}

func (p *Policy) failDecision(now, resetAt time.Time, max int, err error) Decision {
	d := Decision{
		PolicyID: p.cfg.ID,
		Limit:    max,
		ResetAt:  resetAt,
		Degraded: true,
	}

	if p.cfg.FailMode == FailClosed {
		log.Printf("Policy %s: store unavailable, failing closed: %v", p.cfg.ID, err)
		d.RetryAfterSeconds = ceilSeconds(resetAt.Sub(now))
		return d
	}

	log.Printf("Policy %s: store unavailable, failing open: %v", p.cfg.ID, err)
	d.Allowed = true
	d.Remaining = max
	return d
}

func remaining(max int, count int64) int {
	r := max - int(count)
	if r < 0 {
		return 0
	}
	return r
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
