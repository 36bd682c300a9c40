package stripewebhooks

import (
	"strings"

	"github.com/stripe/stripe-go/v75"

	"bot-access/internal/payments"
)

func settlementFor(eventType string, pi *stripe.PaymentIntent) payments.Settlement {
	s := payments.Settlement{
		PaymentID: pi.ID,
		Succeeded: eventType == "payment_intent.succeeded",
	}
	if pi.Customer != nil {
		s.CustomerID = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		s.CardID = pi.PaymentMethod.ID
	}
	if !s.Succeeded {
		s.Detail = failureDetail(eventType, pi)
	}
	return s
}

func failureDetail(eventType string, pi *stripe.PaymentIntent) string {
	if eventType == "payment_intent.canceled" {
		if pi.CancellationReason != "" {
			return "canceled: " + string(pi.CancellationReason)
		}
		return "canceled"
	}
	if e := pi.LastPaymentError; e != nil {
		parts := []string{}
		if e.Code != "" {
			parts = append(parts, string(e.Code))
		}
		if e.DeclineCode != "" {
			parts = append(parts, string(e.DeclineCode))
		}
		if e.Msg != "" {
			parts = append(parts, e.Msg)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}
	return "payment failed"
}
