package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/AccShop/app/controllers"
	"github.com/ManuelReschke/AccShop/app/repository"
	"github.com/ManuelReschke/AccShop/internal/pkg/cache"
	"github.com/ManuelReschke/AccShop/internal/pkg/database"
	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
	"github.com/ManuelReschke/AccShop/internal/pkg/env"
	"github.com/ManuelReschke/AccShop/internal/pkg/gateway"
	"github.com/ManuelReschke/AccShop/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
	"github.com/ManuelReschke/AccShop/internal/pkg/router"
	"github.com/ManuelReschke/AccShop/internal/pkg/sweeper"
)

func main() {
	app, stopWorkers := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	stopWorkers()
}

// NewApplication wires the service graph and returns the app together with a
// function that stops the background workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePath := findBasePath()
	redisClient := cache.GetClient()

	// One broadcaster per process; the relay carries completions between
	// instances.
	hub := notify.New(env.GetDuration("DEPOSIT_STREAM_TIMEOUT", notify.DefaultTimeout))
	relay := notify.NewRedisRelay(redisClient, hub)
	if err := relay.Start(context.Background()); err != nil {
		log.Printf("Warning: Redis relay unavailable, completions stay local: %v", err)
	}

	repository.InitializeFactory(database.GetDB())
	service := deposit.NewService(repository.GetGlobalFactory().GetRepositories(), deposit.ConfigFromEnv(),
		deposit.WithGateway(gateway.NewClientFromEnv()),
		deposit.WithNotifier(relay),
		deposit.WithStatusCache(deposit.NewRedisStatusCache(redisClient)),
	)

	hostname, _ := os.Hostname()
	sweep := sweeper.NewManager(service, sweeper.NewRedisLocker(redisClient, hostname), sweeper.IntervalFromEnv())
	sweep.Start()

	outcomes := counter.NewWebhookOutcomes(redisClient)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "AccShop",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New(monitor.Config{Title: "AccShop Metrics"}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	depositController := controllers.NewDepositController(service, hub)
	depositController.SetHeartbeat(env.GetDuration("DEPOSIT_STREAM_HEARTBEAT", controllers.DefaultHeartbeat))
	router.InstallRouter(app, router.Controllers{
		Deposits:    depositController,
		Webhooks:    controllers.NewPaymentWebhookController(service, outcomes),
		Admin:       controllers.NewAdminWebhookController(service, outcomes),
		AdminAPIKey: env.GetEnv("ADMIN_API_KEY", ""),
	})

	stop := func() {
		sweep.Stop()
		relay.Stop()
	}
	return app, stop
}

func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/accshop to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
