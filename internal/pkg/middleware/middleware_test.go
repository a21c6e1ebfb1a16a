package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccShop/internal/pkg/session"
	"github.com/ManuelReschke/AccShop/internal/pkg/usercontext"
)

// newTestApp wires an in-memory session store and a /login route that plays
// the account service.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	session.UseStore(fibersession.New(fibersession.Config{KeyLookup: "cookie:" + session.CookieName}))
	t.Cleanup(func() { session.UseStore(nil) })

	app := fiber.New()
	app.Use(UserContextMiddleware)
	app.Post("/login", func(c *fiber.Ctx) error {
		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			return err
		}
		sess.Set(usercontext.SessionUserID, uint(7))
		sess.Set(usercontext.SessionUsername, "alice")
		sess.Set(usercontext.SessionIsAdmin, c.Query("admin") == "1")
		return sess.Save()
	})
	app.Get("/me", RequireAPISessionAuth, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	admin := app.Group("/admin", AdminAPIKeyMiddleware("op-secret"), RequireAPIAdmin)
	admin.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

func login(t *testing.T, app *fiber.App, admin bool) *http.Cookie {
	t.Helper()
	target := "/login"
	if admin {
		target += "?admin=1"
	}
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, target, nil))
	require.NoError(t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			return ck
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestRequireAPISessionAuth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(login(t, app, false))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"user_id":7,"username":"alice","is_logged_in":true,"is_admin":false}`, string(body))
}

func TestRequireAPIAdmin(t *testing.T) {
	app := newTestApp(t)
	userCookie := login(t, app, false)
	adminCookie := login(t, app, true)

	tests := []struct {
		name   string
		cookie *http.Cookie
		apiKey string
		want   int
	}{
		{name: "anonymous", want: fiber.StatusUnauthorized},
		{name: "regular user", cookie: userCookie, want: fiber.StatusForbidden},
		{name: "admin session", cookie: adminCookie, want: fiber.StatusOK},
		{name: "operator key", apiKey: "op-secret", want: fiber.StatusOK},
		{name: "wrong key", apiKey: "guess", want: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestExtractAPIKeyFromHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(extractAPIKeyFromHeader(c)) })

	tests := []struct {
		header, value, want string
	}{
		{"X-API-Key", " k1 ", "k1"},
		{"Authorization", "Bearer k2", "k2"},
		{"Authorization", "Basic abc", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(tt.header, tt.value)
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, tt.want, string(body))
	}
}
