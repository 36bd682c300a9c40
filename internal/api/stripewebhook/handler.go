package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/payments"
)

const maxBodyBytes = 65536

type Settler interface {
	Settle(ctx context.Context, s payments.Settlement) (payments.SettleOutcome, error)
}

type Handler struct {
	settler        Settler
	endpointSecret string
	log            *slog.Logger
}

func NewHandler(settler Settler, endpointSecret string, log *slog.Logger) *Handler {
	return &Handler{settler: settler, endpointSecret: endpointSecret, log: log}
}

// StripeWebhook settles charges that were still processing at checkout.
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := middleware.Logger(c, h.log)
	if h.endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Warn("stripe signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}
	log = log.With("event_id", event.ID, "event_type", string(event.Type))

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
			return
		}
		outcome, err := h.settler.Settle(c.Request.Context(), settlementFor(string(event.Type), &pi))
		if err != nil {
			var pe *payments.Error
			if errors.As(err, &pe) && pe.Class == payments.ClassValidation {
				c.JSON(http.StatusBadRequest, gin.H{"error": pe.Message})
				return
			}
			// Stripe retries on 5xx.
			log.Error("settle payment intent", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Settlement failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": outcome.String()})

	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
