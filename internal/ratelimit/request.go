package ratelimit

import "time"

// Request carries the key dimensions of one incoming request. It is
// built by the HTTP layer; this package never touches gin directly.
type Request struct {
	IP       string
	Identity string // authenticated identity, empty when anonymous
	PlanTier string // plan tier of the identity, empty when anonymous
	Method   string
	Path     string
	Platform string // platform/proxy dimension, empty when not applicable
}

// Decision is the outcome of evaluating one request against one policy.
// Exactly one decision is produced per (request, policy) pair.
type Decision struct {
	Allowed  bool
	PolicyID string // empty when no policy was evaluated (bypass, empty chain)

	Limit     int
	Count     int64
	Remaining int
	ResetAt   time.Time

	// RetryAfterSeconds is set only on denials.
	RetryAfterSeconds int

	// Degraded marks a decision taken after a store failure, so the
	// caller can log a warning without inspecting errors.
	Degraded bool

	// Bypassed marks whitelist or plan-tier bypass. No counter was
	// touched and no rate-limit headers should be emitted.
	Bypassed bool
}
