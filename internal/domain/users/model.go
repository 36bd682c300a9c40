package users

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is keyed by email, which doubles as the login name.
type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Email    string  `gorm:"type:varchar(254);not null;uniqueIndex:idx_users_email" json:"email"`
	Username string  `gorm:"type:varchar(254);not null;uniqueIndex:idx_users_username" json:"username"`
	Name     string  `json:"name"`
	Lastname string  `json:"lastname"`
	Password *string `json:"-"`
	Role     string  `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	IsActive bool    `gorm:"not null;default:true" json:"is_active"`

	// CredentialIssuedAt is set once the one-time password has been generated
	// and the welcome mail dispatched.
	CredentialIssuedAt *time.Time `json:"credential_issued_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) HasCredential() bool {
	return u.Password != nil && *u.Password != ""
}

// NormalizeEmail lower-cases and trims an address for lookups and lock keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile is the payer data collected at checkout.
type Profile struct {
	GivenName  string
	FamilyName string
}

// HolderName is the cardholder name stored with the card on file.
func (p Profile) HolderName() string {
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}
