package middleware

import (
	"strings"

	"github.com/aman-churiwal/admission-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// Identity extracts a bearer identity when one is present and valid,
// and stays silent otherwise. Rate-limit keys degrade to IP-only for
// anonymous requests, so this middleware never rejects.
func Identity(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// An API key already resolved the identity
		if c.GetString("identity") != "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.Next()
			return
		}

		if email, ok := claims["email"].(string); ok && email != "" {
			c.Set("identity", email)
		}
		if plan, ok := claims["plan"].(string); ok && plan != "" {
			c.Set("plan_tier", plan)
		}

		c.Next()
	}
}
