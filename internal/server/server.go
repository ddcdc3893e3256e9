package server

import (
	"time"

	"github.com/flowbaker/tgbridge/internal/controllers"
	"github.com/flowbaker/tgbridge/internal/middlewares"
	"github.com/flowbaker/tgbridge/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/xid"
)

type HTTPServerDependencies struct {
	ListenerController *controllers.ListenerController
	// Verifier guards the management routes. Nil leaves them open.
	Verifier middlewares.SignatureVerifier
	// DisableAccessLog turns off the request logger, mostly for tests.
	DisableAccessLog bool
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "tgbridge",
	})

	router.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))
	router.Use(cors.New())

	if !deps.DisableAccessLog {
		router.Use(logger.New())
	}

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "tgbridge",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	// Event routes stay public: the routing token is itself the capability.
	api.Get("/event/:token", deps.ListenerController.Event)
	api.Post("/event", deps.ListenerController.WebhookEvent)

	signed := func(c fiber.Ctx) error {
		return c.Next()
	}
	if deps.Verifier != nil {
		signed = middlewares.APISignatureMiddleware(deps.Verifier)
	}

	api.Get("/connected/:flows_user", signed, deps.ListenerController.ConnectedBots)
	api.Get("/:flows_user/:flow_id/listen", signed, deps.ListenerController.Listen)
	api.Post("/:flows_user/:flow_id/listen", signed, deps.ListenerController.Listen)
	api.Get("/:flows_user/:flow_id/revoke", signed, deps.ListenerController.Revoke)
	api.Post("/:flows_user/:flow_id/revoke", signed, deps.ListenerController.Revoke)

	return router
}
