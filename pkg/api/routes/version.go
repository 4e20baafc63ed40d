package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/redis_client"
)

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": "v0.1",
	})
}

func Health(c *fiber.Ctx) error {
	if redis_client.Client != nil {
		if err := redis_client.Client.Ping(c.UserContext()).Err(); err != nil {
			return sendError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
