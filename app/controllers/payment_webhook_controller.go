package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
)

// SignatureHeader carries the webhook signature when the body has none.
const SignatureHeader = "x-payos-signature"

const webhookTimeout = 15 * time.Second

// OutcomeCounter tallies webhook acknowledgements by reason.
type OutcomeCounter interface {
	Add(ctx context.Context, reason string) error
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// PaymentWebhookController receives gateway callbacks.
type PaymentWebhookController struct {
	service  *deposit.Service
	outcomes OutcomeCounter
}

// NewPaymentWebhookController creates the webhook receiver. outcomes may be
// nil.
func NewPaymentWebhookController(service *deposit.Service, outcomes OutcomeCounter) *PaymentWebhookController {
	return &PaymentWebhookController{service: service, outcomes: outcomes}
}

func (wc *PaymentWebhookController) count(ctx context.Context, reason string) {
	if wc.outcomes == nil {
		return
	}
	if err := wc.outcomes.Add(ctx, reason); err != nil {
		log.Debugf("[PaymentWebhook] counting %s failed: %v", reason, err)
	}
}

// HandlePayOSWebhook acknowledges every authentic delivery with 200 so the
// gateway stops retrying; only storage failures ask for a retry.
func (wc *PaymentWebhookController) HandlePayOSWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns.
	raw := append([]byte(nil), c.Body()...)

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := wc.service.Ingest(ctx, raw, c.Get(SignatureHeader))
	switch {
	case errors.Is(err, deposit.ErrInvalidPayload):
		wc.count(ctx, deposit.ReasonInvalidPayload)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "reason": deposit.ReasonInvalidPayload})
	case errors.Is(err, deposit.ErrInvalidSignature):
		log.Warnf("[PaymentWebhook] rejected delivery from %s: invalid signature", GetClientIP(c))
		wc.count(ctx, deposit.ReasonInvalidSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "reason": deposit.ReasonInvalidSignature})
	case err != nil:
		log.Errorf("[PaymentWebhook] persisting delivery failed: %v", err)
		wc.count(ctx, "persist_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "webhook_persist_failed"})
	}

	wc.count(ctx, res.Reason)
	return c.JSON(fiber.Map{
		"ok":        res.Accepted,
		"reason":    res.Reason,
		"duplicate": res.Duplicate,
	})
}
