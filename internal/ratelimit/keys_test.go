package ratelimit

import "testing"

func TestKeyByIdentity_FallsBackToIP(t *testing.T) {
	if got := KeyByIdentity(&Request{IP: "10.0.0.1", Identity: "User@Example.com"}); got != "id:user@example.com" {
		t.Fatalf("expected lowered identity key, got %q", got)
	}
	if got := KeyByIdentity(&Request{IP: "10.0.0.1"}); got != "ip:10.0.0.1" {
		t.Fatalf("expected IP fallback for anonymous request, got %q", got)
	}
}

func TestKeyByIPIdentity(t *testing.T) {
	got := KeyByIPIdentity(&Request{IP: "10.0.0.1", Identity: "a@b.com"})
	if got != "ip:10.0.0.1:id:a@b.com" {
		t.Fatalf("unexpected key %q", got)
	}

	got = KeyByIPIdentity(&Request{IP: "10.0.0.1"})
	if got != "ip:10.0.0.1" {
		t.Fatalf("expected IP-only key for anonymous request, got %q", got)
	}
}

// A request with no resolvable IP lands in a shared bucket instead of
// failing the pipeline.
func TestKeys_UnknownIPBucket(t *testing.T) {
	if got := KeyByIP(&Request{}); got != "unknown" {
		t.Fatalf("expected unknown bucket, got %q", got)
	}
	if got := KeyByIdentity(&Request{IP: "  "}); got != "ip:unknown" {
		t.Fatalf("expected unknown bucket behind identity fallback, got %q", got)
	}
}

func TestKeyByPlatform(t *testing.T) {
	got := KeyByPlatform(&Request{IP: "10.0.0.2", Platform: "Telegram"})
	if got != "platform:telegram:10.0.0.2" {
		t.Fatalf("unexpected key %q", got)
	}

	got = KeyByPlatform(&Request{IP: "10.0.0.2"})
	if got != "platform:unknown:10.0.0.2" {
		t.Fatalf("expected unknown platform bucket, got %q", got)
	}
}

func TestKeyFuncFor(t *testing.T) {
	req := &Request{IP: "10.0.0.3", Identity: "x@y.com", Platform: "web"}

	cases := map[string]string{
		"ip":          "10.0.0.3",
		"identity":    "id:x@y.com",
		"ip_identity": "ip:10.0.0.3:id:x@y.com",
		"platform":    "platform:web:10.0.0.3",
		"":            "10.0.0.3",
		"bogus":       "10.0.0.3",
	}

	for name, want := range cases {
		if got := KeyFuncFor(name)(req); got != want {
			t.Errorf("KeyFuncFor(%q) = %q, want %q", name, got, want)
		}
	}
}
