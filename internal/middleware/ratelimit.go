package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/aman-churiwal/admission-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Context keys set for the request logger.
const (
	ctxPolicyID    = "rl_policy_id"
	ctxRateLimited = "rl_limited"
)

// RateLimit runs the admission check for one route class. It is the
// only middleware that may reject with 429, and it never produces a
// 5xx: store failures resolve through each policy's fail mode.
func RateLimit(registry *ratelimit.Registry, class ratelimit.RouteClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := limitRequest(c)

		decision := registry.Check(c.Request.Context(), req, class)

		if decision.Degraded {
			requestID := c.GetString("request_id")
			log.Printf("[%s] Degraded rate limit decision on %s (policy %s, allowed=%t)",
				requestID, c.Request.URL.Path, decision.PolicyID, decision.Allowed)
		}

		// Bypass and empty-chain decisions carry no counter state,
		// so they get no rate-limit headers.
		if decision.PolicyID != "" {
			writeHeaders(c, decision)
		}

		if !decision.Allowed {
			c.Set(ctxPolicyID, decision.PolicyID)
			c.Set(ctxRateLimited, true)
			reject(c, decision)
			return
		}

		c.Set(ctxPolicyID, decision.PolicyID)
		c.Next()
	}
}

// limitRequest assembles the key dimensions from what earlier
// middleware resolved. Nothing here authenticates; an absent identity
// simply degrades the key dimension to IP.
func limitRequest(c *gin.Context) *ratelimit.Request {
	return &ratelimit.Request{
		IP:       c.ClientIP(),
		Identity: c.GetString("identity"),
		PlanTier: c.GetString("plan_tier"),
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		Platform: c.GetHeader("X-Platform"),
	}
}

func writeHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
	c.Header("X-RateLimit-Policy", d.PolicyID)
}

func reject(c *gin.Context, d ratelimit.Decision) {
	c.Header("Retry-After", fmt.Sprintf("%d", d.RetryAfterSeconds))

	// A fail-closed denial after a store failure must not leak the
	// store error; the client just sees a generic busy message.
	if d.Degraded {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     "Service busy, try again",
			"retry_after": d.RetryAfterSeconds,
		})
		c.Abort()
		return
	}

	body := gin.H{
		"error":       "rate_limit_exceeded",
		"message":     fmt.Sprintf("Rate limit exceeded, retry in %d seconds", d.RetryAfterSeconds),
		"retry_after": d.RetryAfterSeconds,
	}

	if c.GetString("plan_tier") == "" {
		body["suggestion"] = "Authenticate or upgrade your plan for higher limits"
	}

	c.JSON(http.StatusTooManyRequests, body)
	c.Abort()
}
