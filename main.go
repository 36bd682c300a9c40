package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bot-access/config"
	"bot-access/database"
	adminapi "bot-access/internal/api/admin"
	authapi "bot-access/internal/api/auth"
	"bot-access/internal/api/billing"
	paymentsapi "bot-access/internal/api/payments"
	servicesapi "bot-access/internal/api/services"
	stripewebhooks "bot-access/internal/api/stripewebhook"
	"bot-access/internal/api/users"
	routes "bot-access/internal/app/http"
	"bot-access/internal/app/http/middleware"
	"bot-access/internal/app/logging"
	"bot-access/internal/domain/plans"
	"bot-access/internal/identity"
	"bot-access/internal/infra/inflight"
	"bot-access/internal/infra/mail"
	"bot-access/internal/infra/stripe"
	"bot-access/internal/payments"
	"bot-access/internal/repository"
)

type locker interface {
	payments.Locker
	Ping(ctx context.Context) error
}

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DBURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := database.Migrate(db); err != nil {
		return err
	}

	lock, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}

	sender, err := newMailSender(cfg, log)
	if err != nil {
		return err
	}

	userRepo := repository.NewUsers(db)
	accessRepo := repository.NewAccess(db)

	resolver := identity.NewResolver(userRepo, mail.NewWelcomer(sender, cfg.AppName, cfg.AppURL), log)
	orchestrator := payments.NewOrchestrator(
		stripe.New(cfg.StripeSecretKey, log),
		resolver,
		repository.NewLedger(db),
		lock,
		payments.WithDiscounts(plans.Discounts(cfg.DiscountCodes)),
		payments.WithCurrency(cfg.Currency),
		payments.WithInflightTTL(cfg.InflightTTL),
		payments.WithLogger(log),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	var webhook *stripewebhooks.Handler
	if cfg.StripeWebhookSecret != "" {
		webhook = stripewebhooks.NewHandler(orchestrator, cfg.StripeWebhookSecret, log)
	} else {
		log.Warn("STRIPE_WEBHOOK_SECRET not set; pending charges will not be settled")
	}

	err = routes.RegisterRoutes(r, routes.Deps{
		Log:          log,
		JWTSecret:    []byte(cfg.JWTSecret),
		Sessions:     middleware.NewSessionStore(cfg.SessionSecret, cfg.IsProduction()),
		Currency:     cfg.Currency,
		Entitlements: accessRepo,
		Health: map[string]routes.PingFunc{
			"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
			"inflight": lock.Ping,
		},
		Auth:     authapi.NewHandler(userRepo, []byte(cfg.JWTSecret), log),
		Payments: paymentsapi.NewHandler(orchestrator, log),
		Users:    users.NewHandler(userRepo, accessRepo, log),
		Billing:  billing.NewHandler(accessRepo, log),
		Services: servicesapi.NewHandler(accessRepo, log),
		Admin:    adminapi.NewHandler(repository.NewAdmin(db), log),
		Webhook:  webhook,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	resolver.Wait()
	return nil
}

func newLocker(ctx context.Context, cfg *config.Config, log *slog.Logger) (locker, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, in-flight markers are local to this process")
		return inflight.NewLocalLocker(), nil
	}
	client, err := inflight.Connect(ctx, cfg.RedisURL, 5, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return inflight.NewRedisLocker(client, "bot-access:", log), nil
}

func newMailSender(cfg *config.Config, log *slog.Logger) (mail.Sender, error) {
	switch cfg.MailDriver {
	case "postmark":
		return mail.NewPostmark(mail.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			From:         cfg.MailFrom,
			ReplyTo:      cfg.MailSupport,
		})
	case "smtp":
		return mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	default:
		return mail.NewLogSender(log), nil
	}
}
