package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OwnerKey is the gin context key the owner id is stored under.
const OwnerKey = "owner_id"

// RequireOwner extracts the caller identity from the X-Owner-ID header.
// Every data route is scoped by it; a request without one is rejected
// before reaching any handler.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.GetHeader("X-Owner-ID")
		if ownerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Owner-ID header is required"})
			c.Abort()
			return
		}
		c.Set(OwnerKey, ownerID)
		c.Next()
	}
}
