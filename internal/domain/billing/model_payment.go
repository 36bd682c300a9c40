package billing

import (
	"time"

	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// PaymentMethod is the card on file for a user (one per user).
type PaymentMethod struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_payment_methods_user_id" json:"user_id"`
	User       users.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CustomerID string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_payment_methods_customer_id" json:"customer_id"`
	CardID     *string    `gorm:"type:varchar(255)" json:"card_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Transaction is an append-only ledger row; one per payment attempt. It
// references the user without a cascading constraint so the audit trail
// outlives account state.
type Transaction struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"type:varchar(3);not null" json:"currency"`
	Plan             plans.Plan `gorm:"type:varchar(20);not null" json:"plan"`
	Status           Status     `gorm:"type:varchar(10);not null;index" json:"status"`
	ErrorDetail      *string    `gorm:"type:text" json:"error_detail,omitempty"`
	Recurring        bool       `gorm:"not null;default:false" json:"recurring"`
	NextBillingAt    *time.Time `json:"next_billing_at,omitempty"`
	PaymentReference *string    `gorm:"type:varchar(255);index" json:"payment_reference,omitempty"`
	DiscountCode     *string    `gorm:"type:varchar(64)" json:"discount_code,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
}
