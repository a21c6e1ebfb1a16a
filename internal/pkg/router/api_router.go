package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/AccShop/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrl Controllers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			// Long-lived streams and status polls are bounded elsewhere.
			return c.Method() == fiber.MethodGet
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	deposits := h.ctrl.Deposits
	requireAuth := middleware.RequireAPISessionAuth
	v1.Get("/deposits/bonus", deposits.HandleBonusPreview)
	v1.Post("/deposits", requireAuth, deposits.HandleCreateDeposit)
	v1.Get("/deposits", requireAuth, deposits.HandleListDeposits)
	v1.Get("/deposits/:orderCode", requireAuth, deposits.HandleGetDeposit)
	v1.Get("/deposits/:orderCode/status", requireAuth, deposits.HandleDepositStatus)
	v1.Get("/deposits/:orderCode/stream", requireAuth, deposits.HandleDepositStream)
	v1.Get("/balance", requireAuth, deposits.HandleBalance)

	requireAdmin := []fiber.Handler{middleware.AdminAPIKeyMiddleware(h.ctrl.AdminAPIKey), middleware.RequireAPIAdmin}
	v1.Get("/admin/webhooks", append(requireAdmin, h.ctrl.Admin.HandleListWebhooks)...)
	v1.Get("/admin/webhooks/stats", append(requireAdmin, h.ctrl.Admin.HandleWebhookStats)...)
}

func NewApiRouter(ctrl Controllers) *ApiRouter {
	return &ApiRouter{ctrl: ctrl}
}
