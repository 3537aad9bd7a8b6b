package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TriggerAuth guards the batch-processing and removal endpoints with a shared
// secret. The external scheduler passes the token as a bearer credential.
// An empty configured token rejects every request; these endpoints are never
// open by accident.
// Parameters:
//   - token: shared secret expected in the Authorization header.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func TriggerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "trigger token not configured",
			})
			return
		}

		header := c.GetHeader("Authorization")
		presented := strings.TrimPrefix(header, "Bearer ")
		if presented == header {
			// Also accept the raw token header used by some schedulers.
			presented = c.GetHeader("X-Trigger-Token")
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid trigger token",
			})
			return
		}

		c.Next()
	}
}
