package access

import (
	"time"

	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

// Entitlement is the single access window per user. ExpiresAt is nil exactly
// when Plan is lifetime.
type Entitlement struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_entitlements_user_id" json:"user_id"`
	User      users.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Plan      plans.Plan `gorm:"type:varchar(20);not null" json:"plan"`
	ExpiresAt *time.Time `json:"expires_at"`
	GrantedAt time.Time  `gorm:"not null" json:"granted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
