package catalog

import (
	"time"

	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

// BotService is one entry in the service menu.
type BotService struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"type:varchar(120);not null;uniqueIndex:idx_bot_services_slug" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ServiceAccess grants one user one service. Unique per (user, service).
type ServiceAccess struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_service_access_user_service" json:"user_id"`
	User         users.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	BotServiceID uint       `gorm:"not null;uniqueIndex:idx_service_access_user_service" json:"bot_service_id"`
	BotService   BotService `gorm:"constraint:OnDelete:CASCADE" json:"service"`
	Plan         plans.Plan `gorm:"type:varchar(20);not null" json:"plan"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Progress     float64    `gorm:"not null;default:0" json:"progress"`
	IsFavorite   bool       `gorm:"not null;default:false" json:"is_favorite"`
	IsSaved      bool       `gorm:"not null;default:false" json:"is_saved"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s *ServiceAccess) Active(now time.Time) bool {
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}
