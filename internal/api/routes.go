package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func SetupRoutes(app *fiber.App, handler *Handler) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		TimeFormat: time.RFC3339,
	}))

	// path the installation frontend polls
	app.Get("/api/weather", handler.GetState)

	v1 := app.Group("/api/v1")
	v1.Get("/state", handler.GetState)
	v1.Get("/history", handler.GetHistory)
	v1.Get("/health", handler.GetHealth)
	v1.Get("/metrics", handler.GetMetrics)
	v1.Get("/transit", cache.New(cache.Config{Expiration: time.Minute}), handler.GetTransit)
	v1.Post("/refresh", handler.Refresh)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}
