package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/catalog"
	"bot-access/internal/repository"
)

const maxTransactions = 500

type Store interface {
	ListUsers(ctx context.Context) ([]repository.AdminUser, error)
	ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]repository.AdminTransaction, error)
	Stats(ctx context.Context, now time.Time) (*repository.Stats, error)
	UserDetail(ctx context.Context, id uint) (*repository.UserDetail, error)
	CreateService(ctx context.Context, name, description string) (*catalog.BotService, error)
	ListServices(ctx context.Context) ([]catalog.BotService, error)
}

type Handler struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log, now: time.Now}
}

func (h *Handler) AdminDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the admin dashboard 👑",
	})
}

func (h *Handler) ListAllUsers(c *gin.Context) {
	rows, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, "list users", err, "Failed to load users")
		return
	}
	if rows == nil {
		rows = []repository.AdminUser{}
	}
	c.JSON(http.StatusOK, rows)
}

// ListAllTransactions supports ?status=success|pending|error and ?limit=N.
func (h *Handler) ListAllTransactions(c *gin.Context) {
	f := repository.TransactionFilter{Limit: maxTransactions}

	if s := c.Query("status"); s != "" {
		switch st := billing.Status(s); st {
		case billing.StatusPending, billing.StatusSuccess, billing.StatusError:
			f.Status = st
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		f.Limit = min(n, maxTransactions)
	}

	rows, err := h.store.ListTransactions(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "list transactions", err, "Failed to load transactions")
		return
	}
	if rows == nil {
		rows = []repository.AdminTransaction{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetAdminStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context(), h.now())
	if err != nil {
		h.fail(c, "stats", err, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetUserDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	d, err := h.store.UserDetail(c.Request.Context(), uint(id))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.fail(c, "user detail", err, "Failed to load user")
		return
	}
	if d.Transactions == nil {
		d.Transactions = []billing.Transaction{}
	}
	c.JSON(http.StatusOK, d)
}

type createServiceRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description" binding:"max=2000"`
}

func (h *Handler) CreateService(c *gin.Context) {
	var body createServiceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	s, err := h.store.CreateService(c.Request.Context(), body.Name, body.Description)
	if err != nil {
		h.fail(c, "create service", err, "Failed to create service")
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListServices(c *gin.Context) {
	rows, err := h.store.ListServices(c.Request.Context())
	if err != nil {
		h.fail(c, "list services", err, "Failed to load services")
		return
	}
	if rows == nil {
		rows = []catalog.BotService{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) fail(c *gin.Context, op string, err error, msg string) {
	middleware.Logger(c, h.log).Error("admin: "+op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
