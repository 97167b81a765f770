package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Services  []ServiceConfig `json:"services"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

type RateLimitConfig struct {
	WhitelistIPs []string            `json:"whitelist_ips"`
	TierBypass   map[string][]string `json:"tier_bypass"`
	Adaptive     AdaptiveConfig      `json:"adaptive"`
	SweepSeconds int                 `json:"sweep_seconds"`
	Policies     []PolicyConfig      `json:"policies"`
}

type AdaptiveConfig struct {
	IntervalSeconds int     `json:"interval_seconds"`
	Scale           float64 `json:"scale"`
}

// PolicyConfig is one fixed-window limit bound to a route class.
// Policies sharing a class are evaluated in file order.
type PolicyConfig struct {
	ID          string `json:"id"`
	Class       string `json:"class"`
	WindowMs    int64  `json:"window_ms"`
	MaxRequests int    `json:"max_requests"`
	Adaptive    bool   `json:"adaptive"`
	KeyBy       string `json:"key_by"`    // ip | identity | ip_identity | platform
	Store       string `json:"store"`     // redis | local
	FailMode    string `json:"fail_mode"` // open | closed
}

func (p PolicyConfig) Window() time.Duration {
	return time.Duration(p.WindowMs) * time.Millisecond
}

type ServiceConfig struct {
	Path   string `json:"path"`
	Target string `json:"target"`
	Class  string `json:"class"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == "" {
		c.Postgres.Port = "5432"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Auth.ExpiryHours <= 0 {
		c.Auth.ExpiryHours = 24
	}
	if c.RateLimit.Adaptive.IntervalSeconds <= 0 {
		c.RateLimit.Adaptive.IntervalSeconds = 10
	}
	if c.RateLimit.Adaptive.Scale <= 0 {
		c.RateLimit.Adaptive.Scale = 2.0
	}
	if c.RateLimit.SweepSeconds <= 0 {
		c.RateLimit.SweepSeconds = 60
	}
	if len(c.RateLimit.Policies) == 0 {
		c.RateLimit.Policies = DefaultPolicies()
	}
}

// Secrets and connection coordinates can be overridden from the
// environment so config.json stays committable.
func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (config auth.jwt_secret or env JWT_SECRET)")
	}

	seen := make(map[string]bool)
	for _, p := range c.RateLimit.Policies {
		if p.ID == "" {
			return fmt.Errorf("rate limit policy with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate rate limit policy id %q", p.ID)
		}
		seen[p.ID] = true

		if p.WindowMs < 1000 {
			return fmt.Errorf("policy %s: window_ms must be at least 1000", p.ID)
		}
		if p.MaxRequests <= 0 {
			return fmt.Errorf("policy %s: max_requests must be positive", p.ID)
		}
	}

	return nil
}

// DefaultPolicies is the stock route-class table used when the config
// file does not override it.
func DefaultPolicies() []PolicyConfig {
	return []PolicyConfig{
		{ID: "general", Class: "general", WindowMs: 900000, MaxRequests: 1000, KeyBy: "ip", Store: "redis", FailMode: "open"},
		{ID: "auth", Class: "auth", WindowMs: 900000, MaxRequests: 10, KeyBy: "ip_identity", Store: "redis", FailMode: "closed"},
		{ID: "ai-burst", Class: "ai", WindowMs: 60000, MaxRequests: 30, Adaptive: true, KeyBy: "identity", Store: "redis", FailMode: "open"},
		{ID: "ai-daily", Class: "ai", WindowMs: 86400000, MaxRequests: 5000, KeyBy: "identity", Store: "redis", FailMode: "open"},
		{ID: "platform", Class: "platform", WindowMs: 300000, MaxRequests: 100, KeyBy: "platform", Store: "redis", FailMode: "open"},
		{ID: "burst", Class: "burst", WindowMs: 60000, MaxRequests: 100, KeyBy: "ip", Store: "local", FailMode: "open"},
	}
}
