package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/billing"
)

const defaultHistoryLimit = 50

type History interface {
	ListTransactions(ctx context.Context, userID uint, limit int) ([]billing.Transaction, error)
}

type Handler struct {
	history History
	log     *slog.Logger
}

func NewHandler(history History, log *slog.Logger) *Handler {
	return &Handler{history: history, log: log}
}

// GetPaymentHistory lists the caller's payment attempts, newest first.
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, 200)
	}

	payments, err := h.history.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		middleware.Logger(c, h.log).Error("load payments", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	if payments == nil {
		payments = []billing.Transaction{}
	}

	c.JSON(http.StatusOK, payments)
}
