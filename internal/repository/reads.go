package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/catalog"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Access serves the read side used by account and service endpoints.
type Access struct {
	db *gorm.DB
}

func NewAccess(db *gorm.DB) *Access {
	return &Access{db: db}
}

// GetEntitlement returns nil, nil when the user never paid.
func (r *Access) GetEntitlement(ctx context.Context, userID uint) (*access.Entitlement, error) {
	var e access.Entitlement
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Access) ListTransactions(ctx context.Context, userID uint, limit int) ([]billing.Transaction, error) {
	var txs []billing.Transaction
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&txs).Error
	return txs, err
}

type ServiceFilter struct {
	FavoritesOnly bool
	SavedOnly     bool
	Now           time.Time
}

// ListServiceAccess returns the user's unexpired grants on active services.
func (r *Access) ListServiceAccess(ctx context.Context, userID uint, f ServiceFilter) ([]catalog.ServiceAccess, error) {
	db := r.db.WithContext(ctx)
	active := db.Model(&catalog.BotService{}).Select("id").Where("is_active = ?", true)

	q := db.Preload("BotService").
		Where("user_id = ?", userID).
		Where("bot_service_id IN (?)", active).
		Where("(expires_at IS NULL OR expires_at > ?)", f.Now)
	if f.FavoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}
	if f.SavedOnly {
		q = q.Where("is_saved = ?", true)
	}

	var rows []catalog.ServiceAccess
	err := q.Order("bot_service_id").Find(&rows).Error
	return rows, err
}

// ServicePatch holds the optional user-editable flags of a grant.
type ServicePatch struct {
	Progress   *float64
	IsFavorite *bool
	IsSaved    *bool
}

func (p ServicePatch) Empty() bool {
	return p.Progress == nil && p.IsFavorite == nil && p.IsSaved == nil
}

func (r *Access) UpdateServiceAccess(ctx context.Context, userID, serviceID uint, p ServicePatch) (*catalog.ServiceAccess, error) {
	updates := map[string]interface{}{}
	if p.Progress != nil {
		updates["progress"] = *p.Progress
	}
	if p.IsFavorite != nil {
		updates["is_favorite"] = *p.IsFavorite
	}
	if p.IsSaved != nil {
		updates["is_saved"] = *p.IsSaved
	}

	db := r.db.WithContext(ctx)
	if len(updates) > 0 {
		res := db.Model(&catalog.ServiceAccess{}).
			Where("user_id = ? AND bot_service_id = ?", userID, serviceID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	var row catalog.ServiceAccess
	err := db.Preload("BotService").
		Where("user_id = ? AND bot_service_id = ?", userID, serviceID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
