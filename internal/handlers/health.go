package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func HealthHandler(started time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"msg":    "server is up",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
