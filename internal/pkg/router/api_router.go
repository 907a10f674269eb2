package router

import (
	apiv1 "github.com/paywise/tiersync/internal/api/v1"
	"github.com/paywise/tiersync/internal/pkg/env"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ApiRouter installs the public webhook/hook endpoints and the admin group.
type ApiRouter struct {
	server *apiv1.APIServer
}

func NewApiRouter(server *apiv1.APIServer) *ApiRouter {
	return &ApiRouter{server: server}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 300,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "tiersync api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	admin := v1.Group("/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): env.GetEnv("ADMIN_PASSWORD", "changeme"),
		},
	}))
	apiv1.RegisterHandlers(v1, admin, h.server)
}
