package stripe

import (
	stripe "github.com/stripe/stripe-go/v75"

	"bot-access/internal/domain/billing"
)

// NormalizePaymentStatus maps a PaymentIntent status onto the ledger statuses.
// Only succeeded counts as paid; processing and requires_capture are still
// settling.
func NormalizePaymentStatus(s stripe.PaymentIntentStatus) billing.Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return billing.StatusSuccess
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return billing.StatusPending
	default:
		return billing.StatusError
	}
}
