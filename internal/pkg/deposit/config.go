package deposit

import (
	"time"

	"github.com/spf13/cast"

	"github.com/ManuelReschke/AccShop/internal/pkg/env"
)

const (
	DefaultMinAmount  int64 = 10_000
	DefaultMaxAmount  int64 = 1_000_000_000_000
	DefaultInvoiceTTL       = 30 * 24 * time.Hour
	DefaultWebhookTTL       = 24 * time.Hour

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Config holds the tunables of the deposit flow.
type Config struct {
	MinAmount  int64
	MaxAmount  int64
	InvoiceTTL time.Duration
	WebhookTTL time.Duration
	ReturnURL  string
	CancelURL  string
}

func DefaultConfig() Config {
	return Config{
		MinAmount:  DefaultMinAmount,
		MaxAmount:  DefaultMaxAmount,
		InvoiceTTL: DefaultInvoiceTTL,
		WebhookTTL: DefaultWebhookTTL,
	}
}

// ConfigFromEnv reads DEPOSIT_* keys and falls back to the defaults for
// missing or unparsable values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	appURL := env.GetEnv("APP_URL", "http://localhost:4000")

	if v := cast.ToInt64(env.GetEnv("DEPOSIT_MIN_AMOUNT", "")); v > 0 {
		cfg.MinAmount = v
	}
	if v := cast.ToInt64(env.GetEnv("DEPOSIT_MAX_AMOUNT", "")); v > 0 && v <= DefaultMaxAmount {
		cfg.MaxAmount = v
	}
	if v := cast.ToDuration(env.GetEnv("DEPOSIT_INVOICE_TTL", "")); v > 0 {
		cfg.InvoiceTTL = v
	}
	if v := cast.ToDuration(env.GetEnv("DEPOSIT_WEBHOOK_TTL", "")); v > 0 {
		cfg.WebhookTTL = v
	}
	cfg.ReturnURL = env.GetEnv("DEPOSIT_RETURN_URL", appURL+"/deposit/return")
	cfg.CancelURL = env.GetEnv("DEPOSIT_CANCEL_URL", appURL+"/deposit/cancel")
	return cfg
}
