package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/AccShop/internal/pkg/cache"
	"github.com/ManuelReschke/AccShop/internal/pkg/env"
)

// CookieName is shared with the account service that performs the login.
const CookieName = "session_id"

var sessionStore *session.Store

// NewSessionStore opens the Redis-backed store. Sessions live in Redis
// database 1, the cache uses database 0.
func NewSessionStore() *session.Store {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		Expiration:     env.GetDuration("SESSION_EXPIRATION", 24*time.Hour),
		KeyLookup:      "cookie:" + CookieName,
	})

	return sessionStore
}

// UseStore replaces the store, e.g. with an in-memory one in tests.
func UseStore(store *session.Store) {
	sessionStore = store
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// ErrStoreNotInitialized is returned before NewSessionStore or UseStore ran.
var ErrStoreNotInitialized = errors.New("session store not initialized")

// Values loads the caller's session once and returns the requested keys.
// Missing keys are absent from the map.
func Values(c *fiber.Ctx, keys ...string) (map[string]interface{}, error) {
	if sessionStore == nil {
		return nil, ErrStoreNotInitialized
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if v := sess.Get(key); v != nil {
			values[key] = v
		}
	}
	return values, nil
}
