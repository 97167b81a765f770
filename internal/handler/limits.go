package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/admission-gateway/internal/ratelimit"
	"github.com/aman-churiwal/admission-gateway/internal/repository"
	"github.com/gin-gonic/gin"
)

// LimitsHandler exposes the admission configuration and its recent
// outcomes on the admin surface.
type LimitsHandler struct {
	registry *ratelimit.Registry
	classes  []ratelimit.RouteClass
	adaptive *ratelimit.AdaptiveController
	local    *ratelimit.LocalWindowStore
	logs     *repository.RequestLogRepository
}

func NewLimitsHandler(
	registry *ratelimit.Registry,
	classes []ratelimit.RouteClass,
	adaptive *ratelimit.AdaptiveController,
	local *ratelimit.LocalWindowStore,
	logs *repository.RequestLogRepository,
) *LimitsHandler {
	return &LimitsHandler{
		registry: registry,
		classes:  classes,
		adaptive: adaptive,
		local:    local,
		logs:     logs,
	}
}

// Returns the policy chains and current limiter state
func (h *LimitsHandler) Status(c *gin.Context) {
	chains := make(map[string][]gin.H)

	for _, class := range h.classes {
		policies := h.registry.Policies(class)
		entries := make([]gin.H, 0, len(policies))

		for _, p := range policies {
			entries = append(entries, gin.H{
				"id":            p.ID(),
				"window_ms":     p.Window().Milliseconds(),
				"effective_max": p.Limit(),
			})
		}

		chains[string(class)] = entries
	}

	c.JSON(http.StatusOK, gin.H{
		"chains":        chains,
		"load_factor":   h.adaptive.LoadFactor(),
		"local_windows": h.local.Len(),
		"timestamp":     time.Now().Unix(),
	})
}

// Returns recently rejected requests grouped per policy
func (h *LimitsHandler) Rejections(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	ctx := c.Request.Context()

	counts, err := h.logs.CountByPolicy(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	recent, err := h.logs.FindRateLimited(ctx, from, to, 50, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":      from,
		"to":        to,
		"by_policy": counts,
		"recent":    recent,
	})
}
