package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/access"
	"bot-access/internal/domain/users"
	"bot-access/internal/identity"
)

type UserReader interface {
	FindByID(ctx context.Context, id uint) (*users.User, error)
}

type Handler struct {
	users        UserReader
	entitlements middleware.EntitlementReader
	log          *slog.Logger
	now          func() time.Time
}

func NewHandler(u UserReader, e middleware.EntitlementReader, log *slog.Logger) *Handler {
	return &Handler{users: u, entitlements: e, log: log, now: time.Now}
}

// GetCurrentUser reports the caller's account and what their plan allows
// right now.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		middleware.Logger(c, h.log).Error("load user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	e, err := h.entitlements.GetEntitlement(ctx, userID)
	if err != nil {
		middleware.Logger(c, h.log).Error("load entitlement", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load access"})
		return
	}

	policy := access.ComputePolicy(h.now(), e)

	c.JSON(http.StatusOK, MeResponse{
		User:   BuildUserDTO(user),
		Plan:   BuildPlanDTO(e),
		Access: BuildAccessDTO(policy),
	})
}
