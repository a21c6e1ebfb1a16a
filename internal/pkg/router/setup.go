package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccShop/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers are the process-scoped handlers shared by all routers.
type Controllers struct {
	Deposits *controllers.DepositController
	Webhooks *controllers.PaymentWebhookController
	Admin    *controllers.AdminWebhookController
	// AdminAPIKey unlocks the admin routes for scripts; empty disables it.
	AdminAPIKey string
}

func InstallRouter(app *fiber.App, ctrl Controllers) {
	// The HTTP router installs the session store and the user context
	// middleware that the API routes depend on, so it goes first.
	setup(app, NewHttpRouter(ctrl), NewApiRouter(ctrl))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
