// Package services lets entitled users browse and annotate their bot services.
package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/catalog"
	"bot-access/internal/repository"
)

type Store interface {
	ListServiceAccess(ctx context.Context, userID uint, f repository.ServiceFilter) ([]catalog.ServiceAccess, error)
	UpdateServiceAccess(ctx context.Context, userID, serviceID uint, p repository.ServicePatch) (*catalog.ServiceAccess, error)
}

type Handler struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log, now: time.Now}
}

// ListServices returns the caller's live grants. ?filter=favorites or
// ?filter=saved narrows the list.
func (h *Handler) ListServices(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	f := repository.ServiceFilter{Now: h.now()}
	switch c.Query("filter") {
	case "":
	case "favorites":
		f.FavoritesOnly = true
	case "saved":
		f.SavedOnly = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown filter"})
		return
	}

	rows, err := h.store.ListServiceAccess(c.Request.Context(), userID, f)
	if err != nil {
		middleware.Logger(c, h.log).Error("list services", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load services"})
		return
	}
	if rows == nil {
		rows = []catalog.ServiceAccess{}
	}
	c.JSON(http.StatusOK, rows)
}

type updateServiceRequest struct {
	Progress   *float64 `json:"progress" binding:"omitempty,min=0,max=100"`
	IsFavorite *bool    `json:"is_favorite"`
	IsSaved    *bool    `json:"is_saved"`
}

func (h *Handler) UpdateService(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	serviceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || serviceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid service id"})
		return
	}

	var body updateServiceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
		return
	}
	patch := repository.ServicePatch{
		Progress:   body.Progress,
		IsFavorite: body.IsFavorite,
		IsSaved:    body.IsSaved,
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	row, err := h.store.UpdateServiceAccess(c.Request.Context(), userID, uint(serviceID), patch)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}
	if err != nil {
		middleware.Logger(c, h.log).Error("update service", "user_id", userID, "service_id", serviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update service"})
		return
	}
	c.JSON(http.StatusOK, row)
}
