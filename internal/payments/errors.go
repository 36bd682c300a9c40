package payments

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure. The set is closed; processor codes
// that do not map to a known kind become KindUnknown.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCardDeclined
	KindInsufficientFunds
	KindInvalidCard
	KindExpiredCard
	KindNetworkError
	KindFraudRejected
	KindAuthenticationRequired

	kindCount
)

var kindCodes = [kindCount]string{
	KindUnknown:                "UNKNOWN",
	KindCardDeclined:           "CARD_DECLINED",
	KindInsufficientFunds:      "INSUFFICIENT_FUNDS",
	KindInvalidCard:            "INVALID_CARD",
	KindExpiredCard:            "EXPIRED_CARD",
	KindNetworkError:           "NETWORK_ERROR",
	KindFraudRejected:          "FRAUD_REJECTED",
	KindAuthenticationRequired: "AUTHENTICATION_REQUIRED",
}

var kindMessages = [kindCount]string{
	KindUnknown:                "Payment failed. Please try again.",
	KindCardDeclined:           "Your card was declined. Please try another payment method.",
	KindInsufficientFunds:      "Insufficient funds. Please check your account balance.",
	KindInvalidCard:            "Invalid card details. Please check and try again.",
	KindExpiredCard:            "Your card has expired. Please use another card.",
	KindNetworkError:           "Network issue encountered. Please try again later.",
	KindFraudRejected:          "Payment rejected due to suspected fraud. Please contact your bank.",
	KindAuthenticationRequired: "Additional authentication required. Please complete the verification.",
}

func (k ErrorKind) valid() bool { return k >= 0 && k < kindCount }

// String returns the machine-readable code, e.g. CARD_DECLINED.
func (k ErrorKind) String() string {
	if !k.valid() {
		return kindCodes[KindUnknown]
	}
	return kindCodes[k]
}

// UserMessage returns the fixed, user-safe text for the kind.
func (k ErrorKind) UserMessage() string {
	if !k.valid() {
		return kindMessages[KindUnknown]
	}
	return kindMessages[k]
}

// KindFromCode parses a machine-readable code. Unknown codes map to KindUnknown.
func KindFromCode(code string) ErrorKind {
	for k, c := range kindCodes {
		if c == code {
			return ErrorKind(k)
		}
	}
	return KindUnknown
}

// GatewayError is a failure reported by (or while talking to) the payment processor.
type GatewayError struct {
	Kind      ErrorKind
	Code      string // raw processor code
	Message   string // raw processor message, never shown to payers
	RequestID string
	Err       error
}

func (e *GatewayError) Error() string {
	s := fmt.Sprintf("gateway %s", e.Kind)
	if e.Code != "" {
		s += " code=" + e.Code
	}
	if e.RequestID != "" {
		s += " request=" + e.RequestID
	}
	if e.Message != "" {
		s += ": " + e.Message
	} else if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError normalises any error returned by a Gateway. Context
// cancellation and deadlines count as network failures, never as success.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GatewayError{Kind: KindNetworkError, Err: err}
	}
	return &GatewayError{Kind: KindUnknown, Err: err}
}

// Class is the error taxonomy surfaced to callers of the orchestrator.
type Class int

const (
	ClassValidation Class = iota + 1
	ClassPricing
	ClassGateway
	ClassConflict
	ClassPersistence
	ClassUnexpected
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassPricing:
		return "pricing"
	case ClassGateway:
		return "gateway"
	case ClassConflict:
		return "conflict"
	case ClassPersistence:
		return "persistence"
	case ClassUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// User-facing messages that are not tied to a gateway error kind.
const (
	MsgMissingEmail    = "Email is missing from session."
	MsgInvalidEmail    = "Email address is invalid."
	MsgMissingCard     = "Card details are missing."
	MsgInvalidPlan     = "Invalid plan selected."
	MsgCustomerFailed  = "Failed to create customer profile."
	MsgStoreCardFailed = "Failed to store card on file."
	MsgInFlight        = "A payment for this account is already being processed. Please wait a moment."
	MsgPending         = "Your payment is being processed. Access will be granted once it completes."
	MsgPersistence     = "Your payment was received but we could not activate your access yet. Our team has been notified."
	MsgUnexpected      = "An unexpected error occurred. Please try again later."
)

// Error is returned by Orchestrator.Process. Message is always safe to show
// to the payer; Err carries the internal cause.
type Error struct {
	Class   Class
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport reports whether the failure came from the transport to the
// gateway rather than from a processor decision.
func (e *Error) Transport() bool {
	var ge *GatewayError
	return e.Class == ClassGateway && errors.As(e.Err, &ge) && ge.Kind == KindNetworkError
}

func newError(class Class, msg string, err error) *Error {
	return &Error{Class: class, Message: msg, Err: err}
}

// gatewayFailure picks the payer message for a failed gateway step. Network
// problems always use the network message; other kinds use the step message
// when one is given, otherwise the kind's own message.
func gatewayFailure(ge *GatewayError, stepMsg string) *Error {
	msg := ge.Kind.UserMessage()
	if stepMsg != "" && ge.Kind != KindNetworkError {
		msg = stepMsg
	}
	return newError(ClassGateway, msg, ge)
}
