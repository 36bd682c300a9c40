// Package payments exposes checkout over HTTP.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/plans"
	"bot-access/internal/payments"
)

const msgInvalidMethod = "Invalid request method."

type Processor interface {
	Process(ctx context.Context, req payments.Request) (*payments.Result, error)
}

type Handler struct {
	processor Processor
	log       *slog.Logger
}

func NewHandler(processor Processor, log *slog.Logger) *Handler {
	return &Handler{processor: processor, log: log}
}

type processPaymentRequest struct {
	SourceID          string `json:"source_id" form:"source_id"`
	Plan              string `json:"plan" form:"plan"`
	VerificationToken string `json:"verification_token" form:"verification_token"`
	GivenName         string `json:"givenName" form:"givenName"`
	FamilyName        string `json:"familyName" form:"familyName"`
	Email             string `json:"email" form:"email"`
	DiscountCode      string `json:"discount_code" form:"discount_code"`
}

type processPaymentResponse struct {
	Success   bool       `json:"success"`
	Pending   bool       `json:"pending,omitempty"`
	Message   string     `json:"message,omitempty"`
	Plan      plans.Plan `json:"plan,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ProcessPayment charges the card for the chosen plan and grants access.
// The payer is the token's email, else the session's, else the form's.
func (h *Handler) ProcessPayment(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": msgInvalidMethod})
		return
	}

	var body processPaymentRequest
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	req := payments.Request{
		SourceID:          body.SourceID,
		Plan:              body.Plan,
		VerificationToken: body.VerificationToken,
		GivenName:         body.GivenName,
		FamilyName:        body.FamilyName,
		Email:             payerEmail(c, body.Email),
		DiscountCode:      body.DiscountCode,
	}
	if req.Plan == "" {
		req.Plan = middleware.SelectedPlan(c)
	}

	res, err := h.processor.Process(c.Request.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			middleware.Logger(c, h.log).Error("process payment failed", "status", status, "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if res.Pending {
		c.JSON(http.StatusAccepted, processPaymentResponse{
			Pending: true,
			Message: payments.MsgPending,
		})
		return
	}

	resp := processPaymentResponse{Success: true, ExpiresAt: res.Window.ExpiresAt}
	if res.Transaction != nil {
		resp.Plan = res.Transaction.Plan
	}
	c.JSON(http.StatusOK, resp)
}

func payerEmail(c *gin.Context, fromBody string) string {
	if email := c.GetString(middleware.KeyEmail); email != "" {
		return email
	}
	if email := middleware.SessionEmail(c); email != "" {
		return email
	}
	return fromBody
}

// statusFor maps an orchestrator error to an HTTP status and the message
// shown to the payer. Internal detail never leaves this function.
func statusFor(err error) (int, string) {
	var pe *payments.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, payments.MsgUnexpected
	}

	switch pe.Class {
	case payments.ClassValidation, payments.ClassPricing:
		return http.StatusBadRequest, pe.Message
	case payments.ClassGateway:
		if pe.Transport() {
			return http.StatusInternalServerError, pe.Message
		}
		return http.StatusBadRequest, pe.Message
	case payments.ClassConflict:
		return http.StatusConflict, pe.Message
	case payments.ClassPersistence:
		return http.StatusInternalServerError, payments.MsgPersistence
	default:
		return http.StatusInternalServerError, payments.MsgUnexpected
	}
}

type selectPlanRequest struct {
	Plan string `json:"plan" form:"plan" binding:"required,plan"`
}

// SetSelectedPlan remembers the plan picked on the pricing page so checkout
// can omit it.
func (h *Handler) SetSelectedPlan(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "error": msgInvalidMethod})
		return
	}

	var body selectPlanRequest
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": payments.MsgInvalidPlan})
		return
	}

	if err := middleware.SetSelectedPlan(c, body.Plan); err != nil {
		middleware.Logger(c, h.log).Error("save selected plan", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Could not save your selection."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
