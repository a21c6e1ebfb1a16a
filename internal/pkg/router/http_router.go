package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccShop/internal/pkg/middleware"
	"github.com/ManuelReschke/AccShop/internal/pkg/session"
)

// HttpRouter owns the routes outside /api: health and gateway callbacks.
type HttpRouter struct {
	ctrl Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	app.Use(middleware.UserContextMiddleware)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Gateway callbacks are authenticated by signature, not session, and
	// must not be rate limited with user traffic.
	app.Post("/webhooks/payos", h.ctrl.Webhooks.HandlePayOSWebhook)
}

func NewHttpRouter(ctrl Controllers) *HttpRouter {
	return &HttpRouter{ctrl: ctrl}
}
