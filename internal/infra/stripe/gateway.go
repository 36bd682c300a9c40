package stripe

import (
	"context"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"

	"bot-access/internal/domain/billing"
	"bot-access/internal/payments"
)

// Gateway implements payments.Gateway on top of PaymentIntents. It owns its
// own client so the process never touches the package-level stripe.Key.
type Gateway struct {
	api *client.API
	log *slog.Logger
}

var _ payments.Gateway = (*Gateway)(nil)

func New(secretKey string, log *slog.Logger) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return NewWithClient(api, log)
}

func NewWithClient(api *client.API, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{api: api, log: log.With("component", "stripe")}
}

func (g *Gateway) CreateCustomer(ctx context.Context, p payments.CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(fullName(p.GivenName, p.FamilyName)),
		Email: stripe.String(p.Email),
		Metadata: map[string]string{
			"given_name":  p.GivenName,
			"family_name": p.FamilyName,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", classify(err)
	}
	g.log.DebugContext(ctx, "customer created", "customer_id", cus.ID)
	return cus.ID, nil
}

// ChargeCard creates and confirms a PaymentIntent in one call with automatic
// capture. The payment method is kept for off-session reuse.
func (g *Gateway) ChargeCard(ctx context.Context, p payments.ChargeParams) (*payments.Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.Amount),
		Currency:           stripe.String(p.Currency),
		Customer:           stripe.String(p.CustomerID),
		PaymentMethod:      stripe.String(p.SourceID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
		SetupFutureUsage:   stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
		Description:        stripe.String(p.Description),
		Metadata:           map[string]string{},
	}
	for k, v := range p.Metadata {
		params.Metadata[k] = v
	}
	if p.VerificationToken != "" {
		params.Metadata["verification_token"] = p.VerificationToken
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify(err)
	}

	charge := &payments.Charge{PaymentID: pi.ID}
	if pi.PaymentMethod != nil {
		charge.CardID = pi.PaymentMethod.ID
	} else {
		charge.CardID = p.SourceID
	}

	switch NormalizePaymentStatus(pi.Status) {
	case billing.StatusSuccess:
		return charge, nil
	case billing.StatusPending:
		charge.Pending = true
		return charge, nil
	}

	ge := &payments.GatewayError{
		Kind:    payments.KindCardDeclined,
		Code:    string(pi.Status),
		Message: fmt.Sprintf("payment intent %s ended in status %s", pi.ID, pi.Status),
	}
	if pi.Status == stripe.PaymentIntentStatusRequiresAction {
		ge.Kind = payments.KindAuthenticationRequired
	}
	if pi.LastPaymentError != nil {
		if last := classify(pi.LastPaymentError); last.Kind != payments.KindUnknown {
			ge.Kind, ge.Code, ge.Message = last.Kind, last.Code, last.Message
		}
	}
	return nil, ge
}

// StoreCard makes sure the charged payment method stays on the customer and
// carries the holder name.
func (g *Gateway) StoreCard(ctx context.Context, p payments.StoreCardParams) (string, error) {
	getParams := &stripe.PaymentMethodParams{}
	getParams.Context = ctx
	pm, err := g.api.PaymentMethods.Get(p.CardID, getParams)
	if err != nil {
		return "", classify(err)
	}

	if pm.Customer == nil || pm.Customer.ID != p.CustomerID {
		attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(p.CustomerID)}
		attach.Context = ctx
		attach.SetIdempotencyKey(p.IdempotencyKey + "-attach")
		if pm, err = g.api.PaymentMethods.Attach(pm.ID, attach); err != nil {
			return "", classify(err)
		}
	}

	if p.HolderName != "" {
		update := &stripe.PaymentMethodParams{
			BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
				Name: stripe.String(p.HolderName),
			},
		}
		update.Context = ctx
		update.SetIdempotencyKey(p.IdempotencyKey)
		if p.VerificationToken != "" {
			update.AddMetadata("verification_token", p.VerificationToken)
		}
		if _, err := g.api.PaymentMethods.Update(pm.ID, update); err != nil {
			return "", classify(err)
		}
	}

	g.log.DebugContext(ctx, "card stored", "customer_id", p.CustomerID, "payment_method", pm.ID)
	return pm.ID, nil
}

func fullName(given, family string) string {
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}
