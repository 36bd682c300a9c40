package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

type fakeGateway struct {
	mu sync.Mutex

	customerErr error
	chargeErr   error
	storeErr    error
	pending     bool
	panicOn     string
	afterCharge func()

	customers []CustomerParams
	charges   []ChargeParams
	stores    []StoreCardParams
}

func (g *fakeGateway) CreateCustomer(_ context.Context, p CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOn == "customer" {
		panic("boom")
	}
	g.customers = append(g.customers, p)
	if g.customerErr != nil {
		return "", g.customerErr
	}
	return "cus_" + p.Email, nil
}

func (g *fakeGateway) ChargeCard(_ context.Context, p ChargeParams) (*Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOn == "charge" {
		panic("boom")
	}
	g.charges = append(g.charges, p)
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	if g.afterCharge != nil {
		g.afterCharge()
	}
	return &Charge{PaymentID: "pi_" + p.IdempotencyKey, CardID: "pm_card", Pending: g.pending}, nil
}

func (g *fakeGateway) StoreCard(_ context.Context, p StoreCardParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stores = append(g.stores, p)
	if g.storeErr != nil {
		return "", g.storeErr
	}
	return p.CardID, nil
}

type fakeIdentities struct {
	mu       sync.Mutex
	byEmail  map[string]*users.User
	nextID   uint
	welcomes []string
	findErr  error
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byEmail: map[string]*users.User{}, nextID: 1}
}

func (f *fakeIdentities) seed(email string, withCredential bool) *users.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &users.User{ID: f.nextID, Email: email, Username: email, Role: users.RoleUser}
	if withCredential {
		pw := "hash"
		u.Password = &pw
	}
	f.nextID++
	f.byEmail[email] = u
	return u
}

func (f *fakeIdentities) FindByEmail(_ context.Context, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byEmail[email], nil
}

func (f *fakeIdentities) FindByID(_ context.Context, id uint) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeIdentities) ResolveOrCreate(_ context.Context, email string, p users.Profile) (*users.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byEmail[email]; ok {
		return u, false, nil
	}
	u := &users.User{ID: f.nextID, Email: email, Username: email, Name: p.GivenName, Lastname: p.FamilyName, Role: users.RoleUser}
	f.nextID++
	f.byEmail[email] = u
	return u, true, nil
}

func (f *fakeIdentities) Activate(_ context.Context, u *users.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.HasCredential() {
		return false, nil
	}
	pw := "hash"
	u.Password = &pw
	f.welcomes = append(f.welcomes, u.Email)
	return true, nil
}

func (f *fakeIdentities) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

type memLedger struct {
	mu           sync.Mutex
	methods      map[uint]billing.PaymentMethod
	entitlements map[uint]access.Entitlement
	grants       map[uint]int
	txs          []billing.Transaction

	entitlementErr error
	appendErr      error
	txCalls        int
}

func newMemLedger() *memLedger {
	return &memLedger{
		methods:      map[uint]billing.PaymentMethod{},
		entitlements: map[uint]access.Entitlement{},
		grants:       map[uint]int{},
	}
}

func (m *memLedger) UpsertPaymentMethod(_ context.Context, userID uint, customerID, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[userID] = billing.PaymentMethod{UserID: userID, CustomerID: customerID, CardID: &cardID}
	return nil
}

func (m *memLedger) UpsertEntitlement(_ context.Context, userID uint, plan plans.Plan, w access.Window, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entitlementErr != nil {
		return m.entitlementErr
	}
	m.entitlements[userID] = access.Entitlement{UserID: userID, Plan: plan, ExpiresAt: w.ExpiresAt, GrantedAt: now}
	return nil
}

func (m *memLedger) GrantAllServices(_ context.Context, userID uint, _ plans.Plan, _ access.Window) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[userID] = 3
	return 3, nil
}

func (m *memLedger) AppendTransaction(_ context.Context, tx *billing.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	tx.ID = uint(len(m.txs) + 1)
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memLedger) TransactionsByReference(_ context.Context, ref string) ([]billing.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.Transaction
	for _, tx := range m.txs {
		if tx.PaymentReference != nil && *tx.PaymentReference == ref {
			out = append(out, tx)
		}
	}
	return out, nil
}

// InUserTx snapshots state and restores it when fn fails.
func (m *memLedger) InUserTx(_ context.Context, _ uint, fn func(Ledger) error) error {
	m.mu.Lock()
	m.txCalls++
	methods := make(map[uint]billing.PaymentMethod, len(m.methods))
	for k, v := range m.methods {
		methods[k] = v
	}
	ents := make(map[uint]access.Entitlement, len(m.entitlements))
	for k, v := range m.entitlements {
		ents[k] = v
	}
	grants := make(map[uint]int, len(m.grants))
	for k, v := range m.grants {
		grants[k] = v
	}
	txs := append([]billing.Transaction(nil), m.txs...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.methods, m.entitlements, m.grants, m.txs = methods, ents, grants, txs
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memLedger) byStatus(s billing.Status) []billing.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.Transaction
	for _, tx := range m.txs {
		if tx.Status == s {
			out = append(out, tx)
		}
	}
	return out
}

// ctxLedger fails every call on a done context, as gorm's WithContext does.
type ctxLedger struct {
	*memLedger
}

func (c ctxLedger) UpsertPaymentMethod(ctx context.Context, userID uint, customerID, cardID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memLedger.UpsertPaymentMethod(ctx, userID, customerID, cardID)
}

func (c ctxLedger) UpsertEntitlement(ctx context.Context, userID uint, plan plans.Plan, w access.Window, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memLedger.UpsertEntitlement(ctx, userID, plan, w, now)
}

func (c ctxLedger) GrantAllServices(ctx context.Context, userID uint, plan plans.Plan, w access.Window) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.memLedger.GrantAllServices(ctx, userID, plan, w)
}

func (c ctxLedger) AppendTransaction(ctx context.Context, tx *billing.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memLedger.AppendTransaction(ctx, tx)
}

func (c ctxLedger) InUserTx(ctx context.Context, userID uint, fn func(Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memLedger.InUserTx(ctx, userID, func(Ledger) error { return fn(c) })
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, ErrInFlight
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released++
	}, nil
}

var errStorage = errors.New("storage unavailable")
