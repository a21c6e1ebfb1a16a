package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cast"

	"github.com/ManuelReschke/AccShop/internal/pkg/session"
	"github.com/ManuelReschke/AccShop/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the caller from the shared session. The
// account service owns login and writes the session keys; this side only
// reads them.
func UserContextMiddleware(c *fiber.Ctx) error {
	values, err := session.Values(c, usercontext.SessionUserID, usercontext.SessionUsername, usercontext.SessionIsAdmin)
	if err != nil {
		if !errors.Is(err, session.ErrStoreNotInitialized) {
			log.Warnf("[Session] could not load session: %v", err)
		}
		usercontext.Set(c, usercontext.Anonymous)
		return c.Next()
	}

	userID, err := cast.ToUintE(values[usercontext.SessionUserID])
	if err != nil || userID == 0 {
		usercontext.Set(c, usercontext.Anonymous)
		return c.Next()
	}

	usercontext.Set(c, usercontext.UserContext{
		UserID:     userID,
		Username:   cast.ToString(values[usercontext.SessionUsername]),
		IsLoggedIn: true,
		IsAdmin:    cast.ToBool(values[usercontext.SessionIsAdmin]),
	})
	return c.Next()
}
