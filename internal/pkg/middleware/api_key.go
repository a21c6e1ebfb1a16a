package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccShop/internal/pkg/usercontext"
)

// AdminAPIKeyMiddleware grants admin rights to requests carrying the
// operator key (ADMIN_API_KEY) so reconciliation scripts can work without a
// browser session. An empty key disables it. A wrong key is rejected.
func AdminAPIKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := extractAPIKeyFromHeader(c)
		if provided == "" || key == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		usercontext.Set(c, usercontext.UserContext{
			Username: "operator",
			IsAdmin:  true,
		})
		c.Locals(usercontext.KeyViaAPIKey, true)
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
