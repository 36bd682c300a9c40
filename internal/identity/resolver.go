package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bot-access/internal/domain/users"
)

// ErrNotFound is returned by a Store when no account matches.
var ErrNotFound = errors.New("user not found")

// Store is the account persistence the resolver needs.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id uint) (*users.User, error)
	Create(ctx context.Context, u *users.User) error
	SetCredential(ctx context.Context, userID uint, hash string, issuedAt time.Time) error
}

// Notifier delivers the welcome message carrying the one-time password.
type Notifier interface {
	SendWelcome(ctx context.Context, u *users.User, password string) error
}

const (
	passwordLength = 12
	passwordChars  = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	welcomeTimeout = 30 * time.Second
)

type Resolver struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	cost     int
	now      func() time.Time

	wg sync.WaitGroup
}

type Option func(*Resolver)

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(r *Resolver) { r.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(store Store, notifier Notifier, log *slog.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		store:    store,
		notifier: notifier,
		log:      log.With("component", "identity"),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByEmail returns nil, nil when the payer has no account.
func (r *Resolver) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := r.store.FindByEmail(ctx, users.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// FindByID returns nil, nil when the account no longer exists.
func (r *Resolver) FindByID(ctx context.Context, id uint) (*users.User, error) {
	u, err := r.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return u, nil
}

// ResolveOrCreate returns the account for email, creating one without a
// credential when none exists. The email doubles as the login name.
func (r *Resolver) ResolveOrCreate(ctx context.Context, email string, p users.Profile) (*users.User, bool, error) {
	email = users.NormalizeEmail(email)
	if u, err := r.FindByEmail(ctx, email); err != nil || u != nil {
		return u, false, err
	}

	u := &users.User{
		Email:    email,
		Username: email,
		Name:     p.GivenName,
		Lastname: p.FamilyName,
		Role:     users.RoleUser,
		IsActive: true,
	}
	if err := r.store.Create(ctx, u); err != nil {
		// Lost a race on the unique email index.
		if existing, ferr := r.FindByEmail(ctx, email); ferr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	r.log.InfoContext(ctx, "account created", "user_id", u.ID)
	return u, true, nil
}

// Activate issues a one-time password to an account that has none and sends
// the welcome mail in the background. Mail failures are logged only.
func (r *Resolver) Activate(ctx context.Context, u *users.User) (bool, error) {
	if u.HasCredential() {
		return false, nil
	}

	password, err := generatePassword(passwordLength)
	if err != nil {
		return false, fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	issuedAt := r.now().UTC()
	if err := r.store.SetCredential(ctx, u.ID, string(hash), issuedAt); err != nil {
		return false, fmt.Errorf("store credential: %w", err)
	}
	hashed := string(hash)
	u.Password = &hashed
	u.CredentialIssuedAt = &issuedAt

	recipient := *u
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
		defer cancel()
		if err := r.notifier.SendWelcome(mailCtx, &recipient, password); err != nil {
			r.log.ErrorContext(mailCtx, "welcome mail failed", "user_id", recipient.ID, "error", err)
			return
		}
		r.log.InfoContext(mailCtx, "welcome mail sent", "user_id", recipient.ID)
	}()
	return true, nil
}

// Wait blocks until queued welcome mails have been handed to the notifier.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func generatePassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordChars)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = passwordChars[idx.Int64()]
	}
	return string(b), nil
}
