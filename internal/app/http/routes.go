package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	adminapi "bot-access/internal/api/admin"
	authapi "bot-access/internal/api/auth"
	"bot-access/internal/api/billing"
	paymentsapi "bot-access/internal/api/payments"
	"bot-access/internal/api/plans"
	servicesapi "bot-access/internal/api/services"
	stripewebhooks "bot-access/internal/api/stripewebhook"
	"bot-access/internal/api/users"
	"bot-access/internal/app/http/middleware"
)

// PingFunc reports whether a backing service is reachable.
type PingFunc func(ctx context.Context) error

type Deps struct {
	Log          *slog.Logger
	JWTSecret    []byte
	Sessions     sessions.Store
	Currency     string
	Entitlements middleware.EntitlementReader
	Health       map[string]PingFunc

	Auth     *authapi.Handler
	Payments *paymentsapi.Handler
	Users    *users.Handler
	Billing  *billing.Handler
	Services *servicesapi.Handler
	Admin    *adminapi.Handler
	// Webhook is optional; /webhook is only mounted when it is set.
	Webhook *stripewebhooks.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) error {
	if err := middleware.RegisterValidators(); err != nil {
		return err
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Invalid request method."})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	r.GET("/health", healthHandler(d.Health))

	// Passwords are compared verbatim, so /login skips the sanitiser.
	r.POST("/login", middleware.Sessions(d.Sessions, d.Log), d.Auth.Login)

	if d.Webhook != nil {
		// Signature checks need the raw body.
		r.POST("/webhook", d.Webhook.StripeWebhook)
	}

	// Sanitised public routes. The checkout pair answers every method so
	// that wrong ones get the JSON 405 body.
	public := r.Group("/")
	public.Use(middleware.Sessions(d.Sessions, d.Log), middleware.SanitizeJSON())
	public.GET("/plans", plans.ListPlans(d.Currency))
	public.Any("/process-payment", middleware.OptionalAuth(d.JWTSecret), d.Payments.ProcessPayment)
	public.Any("/set-selected-plan", d.Payments.SetSelectedPlan)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.JWTSecret))
	auth.GET("/me/access", d.Users.GetCurrentUser)
	auth.GET("/payments", d.Billing.GetPaymentHistory)

	// Entitled users
	entitled := auth.Group("/")
	entitled.Use(middleware.RequireActiveEntitlement(d.Entitlements, nil), middleware.SanitizeJSON())
	entitled.GET("/services", d.Services.ListServices)
	entitled.PATCH("/services/:id", d.Services.UpdateService)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.JWTSecret), middleware.RequireRole("admin"))
	admin.GET("/dashboard", d.Admin.AdminDashboard)
	admin.GET("/users", d.Admin.ListAllUsers)
	admin.GET("/transactions", d.Admin.ListAllTransactions)
	admin.GET("/stats", d.Admin.GetAdminStats)
	admin.GET("/user/:id", d.Admin.GetUserDetails)
	admin.GET("/services", d.Admin.ListServices)
	admin.POST("/services", middleware.SanitizeJSON(), d.Admin.CreateService)

	return nil
}

func healthHandler(checks map[string]PingFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				report[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": report})
	}
}
