package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bot-access/internal/domain/users"
	"bot-access/internal/payments"
)

var _ payments.Identities = (*Resolver)(nil)

type memStore struct {
	mu        sync.Mutex
	byEmail   map[string]*users.User
	nextID    uint
	createErr error
	credErr   error
	// raceWinner is inserted instead of the created row to simulate a
	// concurrent insert of the same email.
	raceWinner *users.User
}

func newMemStore() *memStore {
	return &memStore{byEmail: map[string]*users.User{}, nextID: 1}
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindByID(_ context.Context, id uint) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) Create(_ context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raceWinner != nil {
		s.byEmail[s.raceWinner.Email] = s.raceWinner
		return errors.New("duplicate key value violates unique constraint")
	}
	if s.createErr != nil {
		return s.createErr
	}
	u.ID = s.nextID
	s.nextID++
	cp := *u
	s.byEmail[u.Email] = &cp
	return nil
}

func (s *memStore) SetCredential(_ context.Context, id uint, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credErr != nil {
		return s.credErr
	}
	for _, u := range s.byEmail {
		if u.ID == id {
			u.Password = &hash
			u.CredentialIssuedAt = &at
			return nil
		}
	}
	return ErrNotFound
}

type captureNotifier struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (n *captureNotifier) SendWelcome(_ context.Context, u *users.User, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string]string{}
	}
	n.sent[u.Email] = password
	return n.err
}

var issuedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestResolver(store Store, n Notifier) *Resolver {
	return NewResolver(store, n, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return issuedAt }),
	)
}

func TestResolveOrCreate_CreatesWithoutCredential(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store, &captureNotifier{})

	u, created, err := r.ResolveOrCreate(context.Background(), " New@Example.com ", users.Profile{GivenName: "Ada", FamilyName: "Lovelace"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "new@example.com", u.Username)
	assert.Equal(t, "Ada", u.Name)
	assert.False(t, u.HasCredential())

	again, created, err := r.ResolveOrCreate(context.Background(), "new@example.com", users.Profile{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}

func TestResolveOrCreate_LostRace(t *testing.T) {
	store := newMemStore()
	store.raceWinner = &users.User{ID: 42, Email: "new@example.com", Username: "new@example.com"}
	r := newTestResolver(store, &captureNotifier{})

	u, created, err := r.ResolveOrCreate(context.Background(), "new@example.com", users.Profile{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint(42), u.ID)
}

func TestResolveOrCreate_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("db down")
	r := newTestResolver(store, &captureNotifier{})

	_, _, err := r.ResolveOrCreate(context.Background(), "new@example.com", users.Profile{})
	assert.ErrorIs(t, err, store.createErr)
}

func TestFindByEmail_Missing(t *testing.T) {
	r := newTestResolver(newMemStore(), &captureNotifier{})

	u, err := r.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestActivate_IssuesCredentialOnce(t *testing.T) {
	store := newMemStore()
	notifier := &captureNotifier{}
	r := newTestResolver(store, notifier)
	ctx := context.Background()

	u, _, err := r.ResolveOrCreate(ctx, "new@example.com", users.Profile{})
	require.NoError(t, err)

	issued, err := r.Activate(ctx, u)
	require.NoError(t, err)
	assert.True(t, issued)
	r.Wait()

	password := notifier.sent["new@example.com"]
	require.Len(t, password, passwordLength)
	for _, c := range password {
		assert.True(t, strings.ContainsRune(passwordChars, c))
	}

	stored, err := store.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	require.True(t, stored.HasCredential())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*stored.Password), []byte(password)))
	assert.Equal(t, issuedAt, *stored.CredentialIssuedAt)
	assert.True(t, u.HasCredential())

	issued, err = r.Activate(ctx, u)
	require.NoError(t, err)
	assert.False(t, issued)
	r.Wait()
	assert.Len(t, notifier.sent, 1)
}

func TestActivate_MailFailureIsNotReturned(t *testing.T) {
	store := newMemStore()
	notifier := &captureNotifier{err: errors.New("smtp: 421 try later")}
	r := newTestResolver(store, notifier)
	ctx := context.Background()

	u, _, err := r.ResolveOrCreate(ctx, "new@example.com", users.Profile{})
	require.NoError(t, err)

	issued, err := r.Activate(ctx, u)
	require.NoError(t, err)
	assert.True(t, issued)
	r.Wait()

	stored, _ := store.FindByEmail(ctx, "new@example.com")
	assert.True(t, stored.HasCredential())
}

func TestActivate_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.credErr = errors.New("db down")
	notifier := &captureNotifier{}
	r := newTestResolver(store, notifier)
	ctx := context.Background()

	u, _, err := r.ResolveOrCreate(ctx, "new@example.com", users.Profile{})
	require.NoError(t, err)

	issued, err := r.Activate(ctx, u)
	assert.Error(t, err)
	assert.False(t, issued)
	r.Wait()
	assert.Empty(t, notifier.sent)
	assert.False(t, u.HasCredential())
}

func TestGeneratePassword_Unique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		p, err := generatePassword(passwordLength)
		require.NoError(t, err)
		assert.False(t, seen[p])
		seen[p] = true
	}
}
