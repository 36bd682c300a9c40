package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/catalog"
	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
	"bot-access/internal/payments"
)

// Ledger writes payment methods, entitlements, service grants and the
// transaction history.
type Ledger struct {
	db *gorm.DB
}

var _ payments.Ledger = (*Ledger)(nil)

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) UpsertPaymentMethod(ctx context.Context, userID uint, customerID, cardID string) error {
	pm := &billing.PaymentMethod{UserID: userID, CustomerID: customerID}
	if cardID != "" {
		pm.CardID = &cardID
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_id", "card_id", "updated_at"}),
	}).Omit(clause.Associations).Create(pm).Error
}

// UpsertEntitlement replaces the plan and expiry outright; durations never
// stack.
func (l *Ledger) UpsertEntitlement(ctx context.Context, userID uint, plan plans.Plan, w access.Window, now time.Time) error {
	e := &access.Entitlement{
		UserID:    userID,
		Plan:      plan,
		ExpiresAt: w.ExpiresAt,
		GrantedAt: now,
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "expires_at", "granted_at", "updated_at"}),
	}).Omit(clause.Associations).Create(e).Error
}

// GrantAllServices gives the user one access row per active service. Rows
// are keyed by (user, service) so a repeat grant refreshes plan and expiry
// and keeps progress, favourite and saved flags.
func (l *Ledger) GrantAllServices(ctx context.Context, userID uint, plan plans.Plan, w access.Window) (int, error) {
	db := l.db.WithContext(ctx)

	var services []catalog.BotService
	if err := db.Where("is_active = ?", true).Order("id").Find(&services).Error; err != nil {
		return 0, fmt.Errorf("list active services: %w", err)
	}
	if len(services) == 0 {
		return 0, nil
	}

	rows := make([]catalog.ServiceAccess, 0, len(services))
	for _, s := range services {
		rows = append(rows, catalog.ServiceAccess{
			UserID:       userID,
			BotServiceID: s.ID,
			Plan:         plan,
			ExpiresAt:    w.ExpiresAt,
		})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "bot_service_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "expires_at", "updated_at"}),
	}).Omit(clause.Associations).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// AppendTransaction inserts a new ledger row. Rows are never updated.
func (l *Ledger) AppendTransaction(ctx context.Context, tx *billing.Transaction) error {
	if tx.ID != 0 {
		return fmt.Errorf("append transaction: row %d already persisted", tx.ID)
	}
	return l.db.WithContext(ctx).Create(tx).Error
}

func (l *Ledger) TransactionsByReference(ctx context.Context, paymentRef string) ([]billing.Transaction, error) {
	var txs []billing.Transaction
	err := l.db.WithContext(ctx).
		Where("payment_reference = ?", paymentRef).
		Order("created_at, id").
		Find(&txs).Error
	return txs, err
}

// InUserTx runs fn inside one database transaction after taking a row lock
// on the user, which serializes concurrent writers for the same account.
func (l *Ledger) InUserTx(ctx context.Context, userID uint, fn func(payments.Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u users.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&u, userID).Error; err != nil {
			return fmt.Errorf("lock user %d: %w", userID, err)
		}
		return fn(&Ledger{db: tx})
	})
}
