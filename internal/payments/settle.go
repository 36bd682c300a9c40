package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bot-access/internal/domain/access"
	"bot-access/internal/domain/billing"
)

// Settlement is the processor's final answer for a charge that was left
// pending at checkout.
type Settlement struct {
	PaymentID  string
	CustomerID string
	CardID     string
	Succeeded  bool
	Detail     string
}

type SettleOutcome int

const (
	// SettleApplied means a success or error row was appended.
	SettleApplied SettleOutcome = iota + 1
	// SettleDuplicate means the payment already has a final row.
	SettleDuplicate
	// SettleUnknown means no pending row carries this payment id.
	SettleUnknown
)

func (o SettleOutcome) String() string {
	switch o {
	case SettleApplied:
		return "applied"
	case SettleDuplicate:
		return "duplicate"
	case SettleUnknown:
		return "unknown"
	}
	return "invalid"
}

var errAlreadySettled = errors.New("payment already settled")

// Settle completes a pending charge. A success grants access from the moment
// of settlement; a failure appends an error row. Replays are no-ops.
func (o *Orchestrator) Settle(ctx context.Context, s Settlement) (SettleOutcome, error) {
	ref := strings.TrimSpace(s.PaymentID)
	if ref == "" {
		return 0, newError(ClassValidation, "Payment reference is missing.", nil)
	}
	log := o.log.With("payment_id", ref, "succeeded", s.Succeeded)

	rows, err := o.ledger.TransactionsByReference(ctx, ref)
	if err != nil {
		return 0, newError(ClassPersistence, MsgPersistence, fmt.Errorf("load transactions: %w", err))
	}
	pending, settled := splitSettlement(rows)
	if pending == nil {
		log.InfoContext(ctx, "settle: no pending charge")
		return SettleUnknown, nil
	}
	if settled {
		log.InfoContext(ctx, "settle: already settled")
		return SettleDuplicate, nil
	}
	log = log.With("user_id", pending.UserID, "plan", pending.Plan.String())

	now := o.now().UTC()
	if !s.Succeeded {
		detail := strings.TrimSpace(s.Detail)
		if detail == "" {
			detail = "charge failed after pending"
		}
		tx := followUp(pending, billing.StatusError, access.Window{})
		tx.CreatedAt = now
		tx.ErrorDetail = &detail

		err := o.ledger.InUserTx(ctx, pending.UserID, func(l Ledger) error {
			if err := ensureUnsettled(ctx, l, ref); err != nil {
				return err
			}
			return l.AppendTransaction(ctx, tx)
		})
		if errors.Is(err, errAlreadySettled) {
			return SettleDuplicate, nil
		}
		if err != nil {
			return 0, newError(ClassPersistence, MsgPersistence, fmt.Errorf("record failed settlement: %w", err))
		}
		log.WarnContext(ctx, "settle: charge failed", "detail", detail)
		return SettleApplied, nil
	}

	user, err := o.identities.FindByID(ctx, pending.UserID)
	if err != nil {
		return 0, newError(ClassUnexpected, MsgUnexpected, fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return 0, newError(ClassUnexpected, MsgUnexpected, fmt.Errorf("user %d for payment %s is gone", pending.UserID, ref))
	}

	window := access.ComputeWindow(pending.Plan, now)
	tx := followUp(pending, billing.StatusSuccess, window)
	tx.CreatedAt = now

	var granted int
	err = o.ledger.InUserTx(ctx, user.ID, func(l Ledger) error {
		if err := ensureUnsettled(ctx, l, ref); err != nil {
			return err
		}
		if s.CustomerID != "" {
			if err := l.UpsertPaymentMethod(ctx, user.ID, s.CustomerID, s.CardID); err != nil {
				return fmt.Errorf("upsert payment method: %w", err)
			}
		}
		if err := l.UpsertEntitlement(ctx, user.ID, pending.Plan, window, now); err != nil {
			return fmt.Errorf("upsert entitlement: %w", err)
		}
		n, err := l.GrantAllServices(ctx, user.ID, pending.Plan, window)
		if err != nil {
			return fmt.Errorf("grant services: %w", err)
		}
		granted = n
		if err := l.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if errors.Is(err, errAlreadySettled) {
		return SettleDuplicate, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "settle: persist failed", "error", err, "reconciliation_required", true)
		return 0, newError(ClassPersistence, MsgPersistence, err)
	}

	if _, err := o.identities.Activate(ctx, user); err != nil {
		log.ErrorContext(ctx, "settle: activate account", "error", err)
	}
	log.InfoContext(ctx, "settle: access granted", "services_granted", granted)
	return SettleApplied, nil
}

// splitSettlement returns the pending row for a payment and whether a final
// row already follows it.
func splitSettlement(rows []billing.Transaction) (pending *billing.Transaction, settled bool) {
	for i := range rows {
		switch rows[i].Status {
		case billing.StatusPending:
			if pending == nil {
				pending = &rows[i]
			}
		case billing.StatusSuccess, billing.StatusError:
			settled = true
		}
	}
	return pending, settled
}

func ensureUnsettled(ctx context.Context, l Ledger, ref string) error {
	rows, err := l.TransactionsByReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("reload transactions: %w", err)
	}
	if _, settled := splitSettlement(rows); settled {
		return errAlreadySettled
	}
	return nil
}

func followUp(p *billing.Transaction, status billing.Status, w access.Window) *billing.Transaction {
	return &billing.Transaction{
		UserID:           p.UserID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Plan:             p.Plan,
		Status:           status,
		Recurring:        w.Recurring,
		NextBillingAt:    w.NextBillingAt,
		PaymentReference: p.PaymentReference,
		DiscountCode:     p.DiscountCode,
	}
}
