package stripe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"

	"bot-access/internal/payments"
)

type recorded struct {
	method string
	path   string
	form   map[string]string
	idem   string
}

// fakeStripe serves canned JSON per "METHOD /path".
type fakeStripe struct {
	mu     sync.Mutex
	calls  []recorded
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, form: form, idem: r.Header.Get("Idempotency-Key")})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", "req_test")
	if h, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"no route"}}`)
}

func jsonReply(status int, body any) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func newTestGateway(t *testing.T, routes map[string]func(http.ResponseWriter, *http.Request)) (*Gateway, *fakeStripe, *httptest.Server) {
	t.Helper()
	fake := &fakeStripe{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	api := &client.API{}
	api.Init("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return NewWithClient(api, slog.New(slog.NewTextHandler(io.Discard, nil))), fake, srv
}

func TestCreateCustomer(t *testing.T) {
	gw, fake, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/customers": jsonReply(http.StatusOK, map[string]any{"id": "cus_123", "object": "customer"}),
	})

	id, err := gw.CreateCustomer(context.Background(), payments.CustomerParams{
		GivenName:      "Ada",
		FamilyName:     "Lovelace",
		Email:          "ada@example.com",
		IdempotencyKey: "attempt-1-customer",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "Ada Lovelace", call.form["name"])
	assert.Equal(t, "ada@example.com", call.form["email"])
	assert.Equal(t, "attempt-1-customer", call.idem)
}

func TestChargeCard_Succeeded(t *testing.T) {
	gw, fake, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/payment_intents": jsonReply(http.StatusOK, map[string]any{
			"id":             "pi_123",
			"object":         "payment_intent",
			"status":         "succeeded",
			"payment_method": "pm_123",
		}),
	})

	charge, err := gw.ChargeCard(context.Background(), payments.ChargeParams{
		SourceID:          "pm_123",
		Amount:            3795,
		Currency:          "usd",
		CustomerID:        "cus_123",
		VerificationToken: "verf_1",
		IdempotencyKey:    "attempt-1-charge",
	})
	require.NoError(t, err)
	assert.Equal(t, &payments.Charge{PaymentID: "pi_123", CardID: "pm_123"}, charge)

	form := fake.calls[0].form
	assert.Equal(t, "3795", form["amount"])
	assert.Equal(t, "usd", form["currency"])
	assert.Equal(t, "true", form["confirm"])
	assert.Equal(t, "automatic", form["capture_method"])
	assert.Equal(t, "off_session", form["setup_future_usage"])
	assert.Equal(t, "card", form["payment_method_types[0]"])
	assert.Equal(t, "verf_1", form["metadata[verification_token]"])
	assert.Equal(t, "attempt-1-charge", fake.calls[0].idem)
}

func TestChargeCard_Statuses(t *testing.T) {
	tests := []struct {
		status  string
		pending bool
		kind    payments.ErrorKind
		wantErr bool
	}{
		{status: "processing", pending: true},
		{status: "requires_action", wantErr: true, kind: payments.KindAuthenticationRequired},
		{status: "requires_payment_method", wantErr: true, kind: payments.KindCardDeclined},
		{status: "canceled", wantErr: true, kind: payments.KindCardDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			gw, _, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
				"POST /v1/payment_intents": jsonReply(http.StatusOK, map[string]any{
					"id": "pi_1", "object": "payment_intent", "status": tt.status,
				}),
			})

			charge, err := gw.ChargeCard(context.Background(), payments.ChargeParams{SourceID: "pm_1", Amount: 100, Currency: "usd"})
			if tt.wantErr {
				var ge *payments.GatewayError
				require.ErrorAs(t, err, &ge)
				assert.Equal(t, tt.kind, ge.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pending, charge.Pending)
			assert.Equal(t, "pm_1", charge.CardID)
		})
	}
}

func TestChargeCard_Declined(t *testing.T) {
	gw, _, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/payment_intents": jsonReply(http.StatusPaymentRequired, map[string]any{
			"error": map[string]any{
				"type":         "card_error",
				"code":         "card_declined",
				"decline_code": "insufficient_funds",
				"message":      "Your card has insufficient funds.",
			},
		}),
	})

	_, err := gw.ChargeCard(context.Background(), payments.ChargeParams{SourceID: "pm_1", Amount: 100, Currency: "usd"})
	var ge *payments.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, payments.KindInsufficientFunds, ge.Kind)
	assert.Equal(t, "insufficient_funds", ge.Code)
	assert.Equal(t, "req_test", ge.RequestID)
}

func TestChargeCard_Timeout(t *testing.T) {
	release := make(chan struct{})
	gw, _, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/payment_intents": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.ChargeCard(ctx, payments.ChargeParams{SourceID: "pm_1", Amount: 100, Currency: "usd"})
	var ge *payments.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, payments.KindNetworkError, ge.Kind)
}

func TestCreateCustomer_Unreachable(t *testing.T) {
	gw, _, srv := newTestGateway(t, nil)
	srv.Close()

	_, err := gw.CreateCustomer(context.Background(), payments.CustomerParams{Email: "a@example.com"})
	var ge *payments.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, payments.KindNetworkError, ge.Kind)
}

func TestStoreCard_AttachesAndNamesCard(t *testing.T) {
	gw, fake, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/payment_methods/pm_1": jsonReply(http.StatusOK, map[string]any{
			"id": "pm_1", "object": "payment_method", "customer": nil,
		}),
		"POST /v1/payment_methods/pm_1/attach": jsonReply(http.StatusOK, map[string]any{
			"id": "pm_1", "object": "payment_method", "customer": "cus_1",
		}),
		"POST /v1/payment_methods/pm_1": jsonReply(http.StatusOK, map[string]any{
			"id": "pm_1", "object": "payment_method", "customer": "cus_1",
		}),
	})

	id, err := gw.StoreCard(context.Background(), payments.StoreCardParams{
		PaymentID:      "pi_1",
		CardID:         "pm_1",
		HolderName:     "Ada Lovelace",
		CustomerID:     "cus_1",
		IdempotencyKey: "attempt-1-card",
	})
	require.NoError(t, err)
	assert.Equal(t, "pm_1", id)

	require.Len(t, fake.calls, 3)
	assert.Equal(t, "cus_1", fake.calls[1].form["customer"])
	assert.Equal(t, "Ada Lovelace", fake.calls[2].form["billing_details[name]"])
}

func TestStoreCard_AlreadyAttached(t *testing.T) {
	gw, fake, _ := newTestGateway(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/payment_methods/pm_1": jsonReply(http.StatusOK, map[string]any{
			"id": "pm_1", "object": "payment_method", "customer": "cus_1",
		}),
	})

	id, err := gw.StoreCard(context.Background(), payments.StoreCardParams{CardID: "pm_1", CustomerID: "cus_1"})
	require.NoError(t, err)
	assert.Equal(t, "pm_1", id)
	assert.Len(t, fake.calls, 1)
}
