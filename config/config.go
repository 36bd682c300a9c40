package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// sandboxDiscountCodes is only applied outside production when DISCOUNT_CODES is empty.
var sandboxDiscountCodes = map[string]int64{"TESTDISCOUNT": 100}

type Config struct {
	AppName    string `env:"APP_NAME" envDefault:"Bot Access"`
	Port       string `env:"PORT" envDefault:"8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppURL     string `env:"APP_URL" envDefault:"http://localhost:5173"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`

	DBDriver string `env:"DB_DRIVER" envDefault:"postgres"`
	DBURL    string `env:"DB_URL,required,notEmpty"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`

	StripeSecretKey     string           `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	StripeWebhookSecret string           `env:"STRIPE_WEBHOOK_SECRET"`
	Currency            string           `env:"PAYMENT_CURRENCY" envDefault:"usd"`
	DiscountCodes       map[string]int64 `env:"DISCOUNT_CODES"`

	RedisURL    string        `env:"REDIS_URL"`
	InflightTTL time.Duration `env:"INFLIGHT_TTL" envDefault:"2m"`

	MailDriver           string `env:"MAIL_DRIVER" envDefault:"log"`
	MailFrom             string `env:"MAIL_FROM" envDefault:"hello@localhost"`
	MailSupport          string `env:"MAIL_SUPPORT" envDefault:"support@localhost"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if len(cfg.DiscountCodes) == 0 && !cfg.IsProduction() {
		cfg.DiscountCodes = make(map[string]int64, len(sandboxDiscountCodes))
		for code, amount := range sandboxDiscountCodes {
			cfg.DiscountCodes[code] = amount
		}
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or mysql, got %q", c.DBDriver)
	}

	switch c.MailDriver {
	case "log":
	case "postmark":
		if c.PostmarkServerToken == "" || c.PostmarkAccountToken == "" {
			return fmt.Errorf("MAIL_DRIVER=postmark requires POSTMARK_SERVER_TOKEN and POSTMARK_ACCOUNT_TOKEN")
		}
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("MAIL_DRIVER=smtp requires SMTP_HOST")
		}
	default:
		return fmt.Errorf("MAIL_DRIVER must be log, postmark or smtp, got %q", c.MailDriver)
	}

	for code, amount := range c.DiscountCodes {
		if amount <= 0 {
			return fmt.Errorf("discount code %q has non-positive amount %d", code, amount)
		}
	}
	return nil
}
