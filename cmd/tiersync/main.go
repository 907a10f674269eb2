package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/paywise/tiersync/internal/api/v1"
	"github.com/paywise/tiersync/internal/pkg/accountdir"
	"github.com/paywise/tiersync/internal/pkg/auditlog"
	"github.com/paywise/tiersync/internal/pkg/cache"
	"github.com/paywise/tiersync/internal/pkg/customerdir"
	"github.com/paywise/tiersync/internal/pkg/database"
	"github.com/paywise/tiersync/internal/pkg/env"
	"github.com/paywise/tiersync/internal/pkg/pendingstore"
	"github.com/paywise/tiersync/internal/pkg/reconcile"
	"github.com/paywise/tiersync/internal/pkg/router"
	"github.com/paywise/tiersync/internal/pkg/session"
	"github.com/paywise/tiersync/internal/pkg/sweeper"
)

func main() {
	app, background := NewApplication()
	background.Start()

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		background.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4100")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *sweeper.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	audit := auditlog.NewServiceFromDB(db)
	pending := pendingstore.NewServiceFromDB(db)
	customers := customerdir.NewServiceFromDB(db)
	accounts := accountdir.NewDirectory(db)
	revoker := session.NewRedisRevoker(cache.GetClient())

	engine := reconcile.New(accounts, audit, pending, customers, revoker)
	background := sweeper.NewManager(pending, engine)

	app := fiber.New(fiber.Config{
		AppName: "tiersync",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// ROUTER
	apiServer := apiv1.NewAPIServer(engine, audit, pending, customers)
	router.InstallRouter(app, router.NewApiRouter(apiServer))

	return app, background
}
