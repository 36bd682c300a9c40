package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bot-access/internal/domain/users"
	"bot-access/internal/identity"
)

// Users is the gorm-backed account store.
type Users struct {
	db *gorm.DB
}

var _ identity.Store = (*Users)(nil)

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	var u users.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Users) FindByID(ctx context.Context, id uint) (*users.User, error) {
	var u users.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Users) Create(ctx context.Context, u *users.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Users) SetCredential(ctx context.Context, userID uint, hash string, issuedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password":             hash,
			"credential_issued_at": issuedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return identity.ErrNotFound
	}
	return nil
}
