package payments

import (
	"context"
	"errors"
	"time"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

type CustomerParams struct {
	GivenName      string
	FamilyName     string
	Email          string
	IdempotencyKey string
}

type ChargeParams struct {
	SourceID          string // card token from the client
	Amount            int64  // minor units
	Currency          string
	CustomerID        string
	VerificationToken string
	Description       string
	Metadata          map[string]string
	IdempotencyKey    string
}

// Charge is the outcome of a captured (or still settling) payment.
type Charge struct {
	PaymentID string
	CardID    string
	Pending   bool
}

type StoreCardParams struct {
	PaymentID         string
	CardID            string
	VerificationToken string
	HolderName        string
	CustomerID        string
	IdempotencyKey    string
}

// Gateway is the external card processor. Implementations must return
// *GatewayError (or an error wrapping one) on failure.
type Gateway interface {
	CreateCustomer(ctx context.Context, p CustomerParams) (customerID string, err error)
	ChargeCard(ctx context.Context, p ChargeParams) (*Charge, error)
	StoreCard(ctx context.Context, p StoreCardParams) (cardID string, err error)
}

// Identities finds and provisions local accounts for payers.
type Identities interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id uint) (*users.User, error)
	// ResolveOrCreate returns the account for email, creating it without a
	// credential when missing.
	ResolveOrCreate(ctx context.Context, email string, profile users.Profile) (*users.User, bool, error)
	// Activate issues the one-time credential and welcome notification if the
	// account has none yet. It reports whether a credential was issued.
	Activate(ctx context.Context, u *users.User) (bool, error)
}

// Ledger persists payment methods, entitlements and the transaction history.
type Ledger interface {
	UpsertPaymentMethod(ctx context.Context, userID uint, customerID, cardID string) error
	UpsertEntitlement(ctx context.Context, userID uint, plan plans.Plan, w access.Window, now time.Time) error
	GrantAllServices(ctx context.Context, userID uint, plan plans.Plan, w access.Window) (int, error)
	AppendTransaction(ctx context.Context, tx *billing.Transaction) error
	// TransactionsByReference returns every row recorded for one gateway
	// payment, oldest first.
	TransactionsByReference(ctx context.Context, paymentRef string) ([]billing.Transaction, error)
	// InUserTx runs fn in one storage transaction that holds an exclusive lock
	// on the user's row until commit.
	InUserTx(ctx context.Context, userID uint, fn func(Ledger) error) error
}

// ErrInFlight is returned by a Locker when the key is already held.
var ErrInFlight = errors.New("payment already in flight")

// Locker marks a payer as having a payment in progress.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
