package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRegistry_WhitelistSkipsStore(t *testing.T) {
	store := newMockStore()
	at := time.UnixMilli(1_700_000_010_000)

	p := newTestPolicy(t, PolicyConfig{ID: "general", Window: time.Minute, MaxRequests: 1}, store, at)

	reg := NewRegistry()
	reg.Register(ClassGeneral, p)
	reg.Whitelist("192.0.2.10")

	req := &Request{IP: "192.0.2.10"}

	for i := 0; i < 5; i++ {
		d := reg.Check(context.Background(), req, ClassGeneral)
		if !d.Allowed {
			t.Fatalf("expected whitelisted request %d to be allowed", i+1)
		}
		if !d.Bypassed {
			t.Fatalf("expected whitelisted decision to be marked bypassed")
		}
	}

	if store.calls != 0 {
		t.Fatalf("expected whitelisted requests to never touch the store, got %d calls", store.calls)
	}
}

func TestRegistry_PlanTierBypassIsPerClass(t *testing.T) {
	store := newMockStore()
	at := time.UnixMilli(1_700_000_010_000)

	general := newTestPolicy(t, PolicyConfig{ID: "general", Window: time.Minute, MaxRequests: 1}, store, at)
	auth := newTestPolicy(t, PolicyConfig{ID: "auth", Window: time.Minute, MaxRequests: 1}, store, at)

	reg := NewRegistry()
	reg.Register(ClassGeneral, general)
	reg.Register(ClassAuth, auth)
	reg.AllowBypass("enterprise", ClassGeneral)

	req := &Request{IP: "203.0.113.20", Identity: "corp@example.com", PlanTier: "enterprise"}

	// Bypassed on general, no matter the count
	for i := 0; i < 3; i++ {
		if d := reg.Check(context.Background(), req, ClassGeneral); !d.Bypassed {
			t.Fatalf("expected enterprise tier to bypass general")
		}
	}

	// The grant does not extend to auth
	if d := reg.Check(context.Background(), req, ClassAuth); d.Bypassed {
		t.Fatalf("expected auth class to still be evaluated for enterprise tier")
	}
}

// A route composing a burst policy before a daily one denies on the
// 101st request via burst even though the daily budget is untouched,
// and the decision carries the burst policy's state.
func TestRegistry_ComposedChainShortCircuits(t *testing.T) {
	store := newMockStore()
	at := time.UnixMilli(1_700_000_010_000)

	burst := newTestPolicy(t, PolicyConfig{ID: "burst", Window: time.Minute, MaxRequests: 100}, store, at)
	daily := newTestPolicy(t, PolicyConfig{ID: "daily", Window: 24 * time.Hour, MaxRequests: 5000}, store, at)

	reg := NewRegistry()
	reg.Register(ClassAI, burst, daily)

	req := &Request{IP: "203.0.113.30"}

	for i := 0; i < 100; i++ {
		d := reg.Check(context.Background(), req, ClassAI)
		if !d.Allowed {
			t.Fatalf("expected request %d to pass both policies", i+1)
		}
		// The rendered decision is the last evaluated policy's
		if d.PolicyID != "daily" {
			t.Fatalf("expected allowed decision from daily policy, got %q", d.PolicyID)
		}
	}

	d := reg.Check(context.Background(), req, ClassAI)
	if d.Allowed {
		t.Fatalf("expected the 101st request to be denied")
	}
	if d.PolicyID != "burst" {
		t.Fatalf("expected denial from the burst policy, got %q", d.PolicyID)
	}
	if d.Limit != 100 {
		t.Fatalf("expected denial to carry the burst limit 100, got %d", d.Limit)
	}

	// Short-circuit: daily was not incremented on the denied request
	dailyKey := fmt.Sprintf("ratelimit:daily:203.0.113.30:%d", at.UnixMilli()/(24*time.Hour).Milliseconds())
	if got := store.counts[dailyKey]; got != 100 {
		t.Fatalf("expected daily count to stay at 100 after short-circuit, got %d", got)
	}
}

func TestRegistry_EmptyChainAllows(t *testing.T) {
	reg := NewRegistry()

	d := reg.Check(context.Background(), &Request{IP: "10.0.0.9"}, RouteClass("unconfigured"))
	if !d.Allowed {
		t.Fatalf("expected empty chain to allow")
	}
	if d.PolicyID != "" {
		t.Fatalf("expected no policy id on empty-chain decision, got %q", d.PolicyID)
	}
}
