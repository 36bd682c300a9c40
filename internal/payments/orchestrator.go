package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

// State is a step of one payment attempt.
type State int

const (
	StateValidating State = iota
	StateResolvingCustomer
	StateCharging
	StateStoringCard
	StateResolvingUser
	StatePersisting
	StateSucceeded
	StateError
)

var stateNames = [...]string{
	StateValidating:        "validating",
	StateResolvingCustomer: "resolving_customer",
	StateCharging:          "charging",
	StateStoringCard:       "storing_card",
	StateResolvingUser:     "resolving_user",
	StatePersisting:        "persisting",
	StateSucceeded:         "succeeded",
	StateError:             "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Request is one checkout submission. Email must already be resolved by the
// caller from the authenticated identity, session or form.
type Request struct {
	SourceID          string
	Plan              string
	VerificationToken string
	GivenName         string
	FamilyName        string
	Email             string
	DiscountCode      string
}

type Result struct {
	User             *users.User
	Transaction      *billing.Transaction
	Window           access.Window
	Pending          bool
	CredentialIssued bool
	ServicesGranted  int
	DiscountCodeUsed bool
}

const (
	defaultInflightTTL = 2 * time.Minute
	// finishTimeout bounds the work left once the gateway has taken the money.
	finishTimeout = 30 * time.Second
)

type Orchestrator struct {
	gateway     Gateway
	identities  Identities
	ledger      Ledger
	locker      Locker
	discounts   plans.Discounts
	currency    string
	inflightTTL time.Duration
	log         *slog.Logger
	now         func() time.Time
}

type Option func(*Orchestrator)

func WithDiscounts(d plans.Discounts) Option {
	return func(o *Orchestrator) { o.discounts = d }
}

func WithCurrency(c string) Option {
	return func(o *Orchestrator) { o.currency = strings.ToLower(c) }
}

func WithInflightTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.inflightTTL = ttl
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock replaces time.Now; used by tests to pin expirations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(gw Gateway, ids Identities, ledger Ledger, locker Locker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:     gw,
		identities:  ids,
		ledger:      ledger,
		locker:      locker,
		currency:    "usd",
		inflightTTL: defaultInflightTTL,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// attempt carries the state of a single Process call.
type attempt struct {
	o   *Orchestrator
	req Request
	id  string
	log *slog.Logger

	state      State
	email      string
	plan       plans.Plan
	amount     int64
	discount   bool
	customerID string
	charge     *Charge
	cardID     string
	user       *users.User
}

// Process runs customer -> charge -> store card -> activate -> persist for
// one payer. Every returned error is a *Error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (res *Result, err error) {
	a := &attempt{o: o, req: req, id: uuid.NewString()}
	a.log = o.log.With("attempt_id", a.id)

	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "payment: panic recovered",
				"state", a.state.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			perr := newError(ClassUnexpected, MsgUnexpected, fmt.Errorf("panic in %s: %v", a.state, r))
			a.recordFailureSafe(ctx, perr.Err.Error())
			a.transition(ctx, StateError)
			res, err = nil, perr
		}
	}()

	res, perr := a.run(ctx)
	if perr != nil {
		a.transition(ctx, StateError)
		return nil, perr
	}
	return res, nil
}

func (a *attempt) transition(ctx context.Context, s State) {
	a.log.DebugContext(ctx, "payment: state", "from", a.state.String(), "to", s.String())
	a.state = s
}

func (a *attempt) run(ctx context.Context) (*Result, *Error) {
	o := a.o

	if e := a.validate(); e != nil {
		a.log.InfoContext(ctx, "payment: rejected", "class", e.Class.String(), "reason", e.Message)
		return nil, e
	}
	a.log = a.log.With("email", a.email, "plan", a.plan.String())
	if code := strings.TrimSpace(a.req.DiscountCode); code != "" && !a.discount {
		a.log.InfoContext(ctx, "payment: discount code not recognised, charging list price", "code", code)
	}

	release, err := o.locker.Acquire(ctx, "payment:"+a.email, o.inflightTTL)
	if err != nil {
		if errors.Is(err, ErrInFlight) {
			a.log.WarnContext(ctx, "payment: duplicate submission")
			return nil, newError(ClassConflict, MsgInFlight, err)
		}
		a.log.ErrorContext(ctx, "payment: in-flight marker unavailable", "error", err)
		return nil, newError(ClassUnexpected, MsgUnexpected, fmt.Errorf("acquire in-flight marker: %w", err))
	}
	defer release()

	// Customer.
	a.transition(ctx, StateResolvingCustomer)
	customerID, err := o.gateway.CreateCustomer(ctx, CustomerParams{
		GivenName:      a.req.GivenName,
		FamilyName:     a.req.FamilyName,
		Email:          a.email,
		IdempotencyKey: a.key("customer"),
	})
	if err != nil {
		ge := AsGatewayError(err)
		a.logGatewayFailure(ctx, "create customer", ge)
		if existing, ferr := o.identities.FindByEmail(ctx, a.email); ferr != nil {
			a.log.ErrorContext(ctx, "payment: lookup after customer failure", "error", ferr)
		} else if existing != nil {
			a.user = existing
			a.recordFailure(ctx, "create customer: "+ge.Error(), nil)
		}
		return nil, gatewayFailure(ge, MsgCustomerFailed)
	}
	a.customerID = customerID

	// The account row exists from here on so every later failure lands in the
	// ledger. It carries no credential until a charge succeeds.
	user, created, err := o.identities.ResolveOrCreate(ctx, a.email, users.Profile{
		GivenName:  a.req.GivenName,
		FamilyName: a.req.FamilyName,
	})
	if err != nil {
		a.log.ErrorContext(ctx, "payment: resolve account", "error", err)
		return nil, newError(ClassUnexpected, MsgUnexpected, fmt.Errorf("resolve account: %w", err))
	}
	a.user = user
	a.log = a.log.With("user_id", user.ID)
	if created {
		a.log.InfoContext(ctx, "payment: account created")
	}

	// Charge.
	a.transition(ctx, StateCharging)
	charge, err := o.gateway.ChargeCard(ctx, ChargeParams{
		SourceID:          a.req.SourceID,
		Amount:            a.amount,
		Currency:          o.currency,
		CustomerID:        a.customerID,
		VerificationToken: a.req.VerificationToken,
		Description:       "Plan " + plans.Label(a.plan),
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(user.ID), 10),
			"plan":    a.plan.String(),
		},
		IdempotencyKey: a.key("charge"),
	})
	if err != nil {
		ge := AsGatewayError(err)
		a.logGatewayFailure(ctx, "charge card", ge)
		a.recordFailure(ctx, "charge card: "+ge.Error(), nil)
		return nil, gatewayFailure(ge, "")
	}
	a.charge = charge
	a.log = a.log.With("payment_id", charge.PaymentID)

	// The payer may hang up now; the charge stands, so the rest must not
	// depend on the request staying open.
	ctx, cancel := detach(ctx)
	defer cancel()

	if charge.Pending {
		tx := a.transaction(billing.StatusPending, access.Window{})
		tx.PaymentReference = strPtr(charge.PaymentID)
		if err := o.ledger.AppendTransaction(ctx, tx); err != nil {
			a.log.ErrorContext(ctx, "payment: record pending charge",
				"error", err, "reconciliation_required", true)
			return nil, newError(ClassPersistence, MsgPersistence, fmt.Errorf("record pending charge: %w", err))
		}
		a.log.InfoContext(ctx, "payment: charge pending")
		return &Result{User: user, Transaction: tx, Pending: true, DiscountCodeUsed: a.discount}, nil
	}

	// Card on file.
	a.transition(ctx, StateStoringCard)
	cardID, err := o.gateway.StoreCard(ctx, StoreCardParams{
		PaymentID:         charge.PaymentID,
		CardID:            charge.CardID,
		VerificationToken: a.req.VerificationToken,
		HolderName:        users.Profile{GivenName: a.req.GivenName, FamilyName: a.req.FamilyName}.HolderName(),
		CustomerID:        a.customerID,
		IdempotencyKey:    a.key("card"),
	})
	if err != nil {
		ge := AsGatewayError(err)
		a.logGatewayFailure(ctx, "store card", ge)
		a.recordFailure(ctx, "store card: "+ge.Error(), strPtr(charge.PaymentID))
		return nil, gatewayFailure(ge, MsgStoreCardFailed)
	}
	a.cardID = cardID

	// Account activation.
	a.transition(ctx, StateResolvingUser)
	issued, err := o.identities.Activate(ctx, user)
	if err != nil {
		// Money has been taken; access is still granted and the payer can
		// recover the credential through password reset.
		a.log.ErrorContext(ctx, "payment: activate account", "error", err)
	}

	// Persist.
	a.transition(ctx, StatePersisting)
	now := o.now().UTC()
	window := access.ComputeWindow(a.plan, now)
	tx := a.transaction(billing.StatusSuccess, window)
	tx.CreatedAt = now
	tx.PaymentReference = strPtr(charge.PaymentID)

	var granted int
	err = o.ledger.InUserTx(ctx, user.ID, func(l Ledger) error {
		if err := l.UpsertPaymentMethod(ctx, user.ID, a.customerID, a.cardID); err != nil {
			return fmt.Errorf("upsert payment method: %w", err)
		}
		if err := l.UpsertEntitlement(ctx, user.ID, a.plan, window, now); err != nil {
			return fmt.Errorf("upsert entitlement: %w", err)
		}
		n, err := l.GrantAllServices(ctx, user.ID, a.plan, window)
		if err != nil {
			return fmt.Errorf("grant services: %w", err)
		}
		granted = n
		if err := l.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		a.log.ErrorContext(ctx, "payment: persist after charge failed",
			"error", err,
			"reconciliation_required", true,
			"customer_id", a.customerID,
			"card_id", a.cardID,
			"amount", a.amount,
		)
		a.recordFailure(ctx, "persist: "+err.Error(), strPtr(charge.PaymentID))
		return nil, newError(ClassPersistence, MsgPersistence, err)
	}

	a.transition(ctx, StateSucceeded)
	a.log.InfoContext(ctx, "payment: succeeded",
		"amount", a.amount,
		"discount", a.discount,
		"services_granted", granted,
	)
	return &Result{
		User:             user,
		Transaction:      tx,
		Window:           window,
		CredentialIssued: issued,
		ServicesGranted:  granted,
		DiscountCodeUsed: a.discount,
	}, nil
}

// validate checks the input and prices the plan. No external calls happen
// before it passes.
func (a *attempt) validate() *Error {
	a.email = users.NormalizeEmail(a.req.Email)
	if a.email == "" {
		return newError(ClassValidation, MsgMissingEmail, nil)
	}
	if addr, err := mail.ParseAddress(a.email); err != nil || addr.Address != a.email {
		return newError(ClassValidation, MsgInvalidEmail, err)
	}
	if strings.TrimSpace(a.req.SourceID) == "" {
		return newError(ClassValidation, MsgMissingCard, nil)
	}
	plan, err := plans.Parse(a.req.Plan)
	if err != nil {
		return newError(ClassValidation, MsgInvalidPlan, err)
	}
	a.plan = plan

	amount := plans.PriceFor(plan)
	if code := strings.TrimSpace(a.req.DiscountCode); code != "" {
		if override, ok := a.o.discounts.Apply(code, amount); ok {
			amount, a.discount = override, true
		}
	}
	if amount <= 0 {
		return newError(ClassPricing, MsgInvalidPlan, fmt.Errorf("non-positive amount %d for plan %s", amount, plan))
	}
	a.amount = amount
	return nil
}

// key derives the gateway idempotency key for one step of this attempt.
func (a *attempt) key(step string) string {
	return a.id + "-" + step
}

func (a *attempt) transaction(status billing.Status, w access.Window) *billing.Transaction {
	tx := &billing.Transaction{
		UserID:        a.user.ID,
		Amount:        a.amount,
		Currency:      a.o.currency,
		Plan:          a.plan,
		Status:        status,
		Recurring:     w.Recurring,
		NextBillingAt: w.NextBillingAt,
		CreatedAt:     a.o.now().UTC(),
	}
	if a.discount {
		tx.DiscountCode = strPtr(strings.TrimSpace(a.req.DiscountCode))
	}
	return tx
}

// recordFailure appends the error row for this attempt. Errors writing it are
// logged only; the caller already has a failure to report.
func (a *attempt) recordFailure(ctx context.Context, detail string, paymentRef *string) {
	if a.user == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	tx := a.transaction(billing.StatusError, access.Window{})
	tx.ErrorDetail = &detail
	tx.PaymentReference = paymentRef
	if err := a.o.ledger.AppendTransaction(ctx, tx); err != nil {
		a.log.ErrorContext(ctx, "payment: record failure", "error", err, "detail", detail)
	}
}

func (a *attempt) recordFailureSafe(ctx context.Context, detail string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "payment: record failure panicked", "panic", fmt.Sprint(r))
		}
	}()
	var ref *string
	if a.charge != nil {
		ref = strPtr(a.charge.PaymentID)
	}
	a.recordFailure(ctx, detail, ref)
}

func (a *attempt) logGatewayFailure(ctx context.Context, step string, ge *GatewayError) {
	a.log.WarnContext(ctx, "payment: gateway failure",
		"step", step,
		"kind", ge.Kind.String(),
		"code", ge.Code,
		"request_id", ge.RequestID,
		"error", ge.Error(),
	)
}

// detach keeps ctx values but drops its cancellation, bounded by finishTimeout.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
