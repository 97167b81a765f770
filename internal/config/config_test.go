package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return path
}

func TestLoad_DefaultsAndPolicyTable(t *testing.T) {
	path := writeConfig(t, `{"auth": {"jwt_secret": "test-secret"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Redis.Addr())
	}
	if len(cfg.RateLimit.Policies) == 0 {
		t.Fatalf("expected default policy table")
	}

	byID := make(map[string]PolicyConfig)
	for _, p := range cfg.RateLimit.Policies {
		byID[p.ID] = p
	}

	general, ok := byID["general"]
	if !ok {
		t.Fatalf("expected a general policy in the defaults")
	}
	if general.WindowMs != 900000 || general.MaxRequests != 1000 {
		t.Fatalf("unexpected general policy %+v", general)
	}

	auth := byID["auth"]
	if auth.FailMode != "closed" {
		t.Fatalf("expected auth policy to fail closed, got %q", auth.FailMode)
	}
}

func TestLoad_RejectsInvalidPolicies(t *testing.T) {
	cases := []struct {
		name     string
		policies string
	}{
		{"duplicate id", `[{"id":"a","class":"general","window_ms":60000,"max_requests":5},{"id":"a","class":"general","window_ms":60000,"max_requests":5}]`},
		{"sub-second window", `[{"id":"a","class":"general","window_ms":500,"max_requests":5}]`},
		{"zero max", `[{"id":"a","class":"general","window_ms":60000,"max_requests":0}]`},
	}

	for _, tc := range cases {
		path := writeConfig(t, `{"auth":{"jwt_secret":"s"},"rate_limit":{"policies":`+tc.policies+`}}`)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	path := writeConfig(t, `{}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when no jwt secret is configured")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_HOST", "redis.internal")

	path := writeConfig(t, `{"auth": {"jwt_secret": "from-file"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env to override jwt secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Redis.Host != "redis.internal" {
		t.Fatalf("expected env to override redis host, got %q", cfg.Redis.Host)
	}
}
