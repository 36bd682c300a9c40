package stripe

import (
	"errors"
	"net/http"

	stripe "github.com/stripe/stripe-go/v75"

	"bot-access/internal/payments"
)

var codeKinds = map[string]payments.ErrorKind{
	"card_declined":           payments.KindCardDeclined,
	"generic_decline":         payments.KindCardDeclined,
	"do_not_honor":            payments.KindCardDeclined,
	"insufficient_funds":      payments.KindInsufficientFunds,
	"invalid_number":          payments.KindInvalidCard,
	"incorrect_number":        payments.KindInvalidCard,
	"invalid_cvc":             payments.KindInvalidCard,
	"incorrect_cvc":           payments.KindInvalidCard,
	"invalid_expiry_month":    payments.KindInvalidCard,
	"invalid_expiry_year":     payments.KindInvalidCard,
	"incorrect_zip":           payments.KindInvalidCard,
	"expired_card":            payments.KindExpiredCard,
	"fraudulent":              payments.KindFraudRejected,
	"stolen_card":             payments.KindFraudRejected,
	"lost_card":               payments.KindFraudRejected,
	"pickup_card":             payments.KindFraudRejected,
	"merchant_blacklist":      payments.KindFraudRejected,
	"authentication_required": payments.KindAuthenticationRequired,
	"rate_limit":              payments.KindNetworkError,
}

// classify converts an error from the Stripe client into a gateway error.
// The decline code is more specific than the error code, so it wins when it
// maps to a known kind. Anything that is not a Stripe API error never reached
// the processor and counts as a network failure.
func classify(err error) *payments.GatewayError {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return &payments.GatewayError{Kind: payments.KindNetworkError, Err: err}
	}

	ge := &payments.GatewayError{
		Kind:      payments.KindUnknown,
		Code:      string(se.Code),
		Message:   se.Msg,
		RequestID: se.RequestID,
		Err:       err,
	}
	if k, ok := codeKinds[string(se.DeclineCode)]; ok {
		ge.Kind = k
		ge.Code = string(se.DeclineCode)
		return ge
	}
	if k, ok := codeKinds[string(se.Code)]; ok {
		ge.Kind = k
		return ge
	}
	if se.HTTPStatusCode >= http.StatusInternalServerError {
		ge.Kind = payments.KindNetworkError
	}
	return ge
}
