package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bot-access/internal/domain/access"
)

const KeyPolicy = "access_policy"

type EntitlementReader interface {
	GetEntitlement(ctx context.Context, userID uint) (*access.Entitlement, error)
}

// RequireActiveEntitlement lets the request through only while the user's
// entitlement grants access. Must run after AuthMiddleware.
func RequireActiveEntitlement(reader EntitlementReader, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		e, err := reader.GetEntitlement(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load access"})
			return
		}

		policy := access.ComputePolicy(now(), e)
		switch policy.State {
		case access.AccessNone:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No active plan"})
			return
		case access.AccessExpired:
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "Your plan has expired"})
			return
		}

		c.Set(KeyPolicy, policy)
		c.Next()
	}
}
