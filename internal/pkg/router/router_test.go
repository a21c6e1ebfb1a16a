package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccShop/app/controllers"
	"github.com/ManuelReschke/AccShop/internal/pkg/database"
	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
	"github.com/ManuelReschke/AccShop/internal/pkg/session"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	session.UseStore(fibersession.New())
	t.Cleanup(func() { session.UseStore(nil) })

	hub := notify.New(time.Second)
	svc := deposit.NewServiceFromDB(database.NewTestDB(t), deposit.DefaultConfig(), deposit.WithNotifier(hub))

	app := fiber.New()
	InstallRouter(app, Controllers{
		Deposits:    controllers.NewDepositController(svc, hub),
		Webhooks:    controllers.NewPaymentWebhookController(svc, nil),
		Admin:       controllers.NewAdminWebhookController(svc, nil),
		AdminAPIKey: "op-secret",
	})
	return app
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		target string
		header map[string]string
		body   string
		want   int
	}{
		{name: "health", method: http.MethodGet, target: "/health", want: fiber.StatusOK},
		{name: "api root", method: http.MethodGet, target: "/api/", want: fiber.StatusOK},
		{name: "bonus preview is public", method: http.MethodGet, target: "/api/v1/deposits/bonus?amount=100000", want: fiber.StatusOK},
		{name: "list requires session", method: http.MethodGet, target: "/api/v1/deposits", want: fiber.StatusUnauthorized},
		{name: "create requires session", method: http.MethodPost, target: "/api/v1/deposits", body: `{"amount":100000}`, want: fiber.StatusUnauthorized},
		{name: "stream requires session", method: http.MethodGet, target: "/api/v1/deposits/123456/stream", want: fiber.StatusUnauthorized},
		{name: "status requires session", method: http.MethodGet, target: "/api/v1/deposits/123456/status", want: fiber.StatusUnauthorized},
		{name: "balance requires session", method: http.MethodGet, target: "/api/v1/balance", want: fiber.StatusUnauthorized},
		{name: "admin anonymous", method: http.MethodGet, target: "/api/v1/admin/webhooks?orderCode=1", want: fiber.StatusUnauthorized},
		{name: "admin operator key", method: http.MethodGet, target: "/api/v1/admin/webhooks?orderCode=1", header: map[string]string{"X-API-Key": "op-secret"}, want: fiber.StatusOK},
		{name: "admin stats", method: http.MethodGet, target: "/api/v1/admin/webhooks/stats", header: map[string]string{"X-API-Key": "op-secret"}, want: fiber.StatusOK},
		{name: "webhook is public", method: http.MethodPost, target: "/webhooks/payos", body: `{`, want: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
