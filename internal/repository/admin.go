package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/catalog"
	"bot-access/internal/domain/users"
)

// Admin serves the back-office listings.
type Admin struct {
	db *gorm.DB
}

func NewAdmin(db *gorm.DB) *Admin {
	return &Admin{db: db}
}

type AdminUser struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Lastname   string     `json:"lastname"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	Plan       *string    `json:"plan,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CustomerID *string    `json:"customer_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (r *Admin) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var rows []AdminUser
	err := r.db.WithContext(ctx).
		Table("users").
		Select(`users.id, users.name, users.lastname, users.email, users.role, users.is_active, users.created_at,
			entitlements.plan AS plan, entitlements.expires_at AS expires_at,
			payment_methods.customer_id AS customer_id`).
		Joins("LEFT JOIN entitlements ON entitlements.user_id = users.id").
		Joins("LEFT JOIN payment_methods ON payment_methods.user_id = users.id").
		Order("users.id").
		Scan(&rows).Error
	return rows, err
}

type AdminTransaction struct {
	ID               uint       `json:"id"`
	UserID           uint       `json:"user_id"`
	Email            string     `json:"email"`
	Plan             string     `json:"plan"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	ErrorDetail      *string    `json:"error_detail,omitempty"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	DiscountCode     *string    `json:"discount_code,omitempty"`
	NextBillingAt    *time.Time `json:"next_billing_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type TransactionFilter struct {
	Status billing.Status
	Limit  int
}

func (r *Admin) ListTransactions(ctx context.Context, f TransactionFilter) ([]AdminTransaction, error) {
	q := r.db.WithContext(ctx).
		Table("transactions").
		Select(`transactions.id, transactions.user_id, users.email, transactions.plan, transactions.amount,
			transactions.currency, transactions.status, transactions.error_detail, transactions.payment_reference,
			transactions.discount_code, transactions.next_billing_at, transactions.created_at`).
		Joins("LEFT JOIN users ON users.id = transactions.user_id").
		Order("transactions.created_at DESC, transactions.id DESC")
	if f.Status != "" {
		q = q.Where("transactions.status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []AdminTransaction
	err := q.Scan(&rows).Error
	return rows, err
}

type Stats struct {
	TotalUsers     int64            `json:"total_users"`
	PayingUsers    int64            `json:"paying_users"`
	TotalRevenue   int64            `json:"total_revenue"`
	RecentRevenue  int64            `json:"recent_revenue"`
	FailedPayments int64            `json:"failed_payments"`
	UsersPerPlan   map[string]int64 `json:"users_per_plan"`
}

// Stats aggregates revenue in minor units; "recent" is the last 30 days
// before now.
func (r *Admin) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	db := r.db.WithContext(ctx)
	s := &Stats{UsersPerPlan: map[string]int64{}}

	if err := db.Model(&users.User{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&access.Entitlement{}).Count(&s.PayingUsers).Error; err != nil {
		return nil, fmt.Errorf("count entitlements: %w", err)
	}
	if err := db.Model(&billing.Transaction{}).
		Where("status = ?", billing.StatusSuccess).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&s.TotalRevenue).Error; err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	if err := db.Model(&billing.Transaction{}).
		Where("status = ? AND created_at >= ?", billing.StatusSuccess, now.AddDate(0, 0, -30)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&s.RecentRevenue).Error; err != nil {
		return nil, fmt.Errorf("sum recent revenue: %w", err)
	}
	if err := db.Model(&billing.Transaction{}).
		Where("status = ?", billing.StatusError).
		Count(&s.FailedPayments).Error; err != nil {
		return nil, fmt.Errorf("count failures: %w", err)
	}

	type planCount struct {
		Plan  *string
		Count int64
	}
	var counts []planCount
	if err := db.Table("users").
		Select("entitlements.plan AS plan, COUNT(users.id) AS count").
		Joins("LEFT JOIN entitlements ON entitlements.user_id = users.id").
		Group("entitlements.plan").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("users per plan: %w", err)
	}
	for _, c := range counts {
		name := "none"
		if c.Plan != nil {
			name = *c.Plan
		}
		s.UsersPerPlan[name] = c.Count
	}
	return s, nil
}

type UserDetail struct {
	User          users.User             `json:"user"`
	Entitlement   *access.Entitlement    `json:"entitlement"`
	PaymentMethod *billing.PaymentMethod `json:"payment_method"`
	Transactions  []billing.Transaction  `json:"transactions"`
}

func (r *Admin) UserDetail(ctx context.Context, id uint) (*UserDetail, error) {
	db := r.db.WithContext(ctx)

	var d UserDetail
	if err := db.First(&d.User, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var e access.Entitlement
	switch err := db.Where("user_id = ?", id).First(&e).Error; {
	case err == nil:
		d.Entitlement = &e
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var pm billing.PaymentMethod
	switch err := db.Where("user_id = ?", id).First(&pm).Error; {
	case err == nil:
		d.PaymentMethod = &pm
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := db.Where("user_id = ?", id).Order("created_at DESC, id DESC").Find(&d.Transactions).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateService adds a catalog entry with a unique slug derived from name.
func (r *Admin) CreateService(ctx context.Context, name, description string) (*catalog.BotService, error) {
	db := r.db.WithContext(ctx)
	base := catalog.MakeSlug(name)
	slug := base
	for i := 2; ; i++ {
		var n int64
		if err := db.Model(&catalog.BotService{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}

	s := &catalog.BotService{Name: name, Slug: slug, Description: description, IsActive: true}
	if err := db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Admin) ListServices(ctx context.Context) ([]catalog.BotService, error) {
	var out []catalog.BotService
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}
