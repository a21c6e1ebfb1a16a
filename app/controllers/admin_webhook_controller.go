package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
)

// AdminWebhookController exposes stored gateway notifications for
// reconciliation.
type AdminWebhookController struct {
	service  *deposit.Service
	outcomes OutcomeCounter
}

func NewAdminWebhookController(service *deposit.Service, outcomes OutcomeCounter) *AdminWebhookController {
	return &AdminWebhookController{service: service, outcomes: outcomes}
}

// HandleListWebhooks looks records up by ?orderCode= or by ?description=,
// optionally narrowed by ?status=.
func (ac *AdminWebhookController) HandleListWebhooks(c *fiber.Ctx) error {
	orderCode := cast.ToInt64(c.Query("orderCode"))
	description := c.Query("description")
	if orderCode <= 0 && description == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "orderCode or description is required")
	}

	records, err := ac.service.WebhookRecords(c.UserContext(), orderCode, description, c.Query("status"))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load webhooks")
	}
	if records == nil {
		records = []models.PaymentWebhook{}
	}
	return c.JSON(fiber.Map{"items": records, "count": len(records)})
}

// HandleWebhookStats returns webhook acknowledgement counts by reason.
func (ac *AdminWebhookController) HandleWebhookStats(c *fiber.Ctx) error {
	if ac.outcomes == nil {
		return c.JSON(fiber.Map{"outcomes": fiber.Map{}})
	}
	counts, err := ac.outcomes.Snapshot(c.UserContext())
	if err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "cache_unavailable", "Counters are unavailable")
	}
	return c.JSON(fiber.Map{"outcomes": counts})
}
