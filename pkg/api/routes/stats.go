package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

func StatsRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Get("/queue", func(c *fiber.Ctx) error {
		stats, err := orchestrator.QueueStats()
		if err != nil {
			return sendJobError(c, err)
		}

		return c.JSON(fiber.Map{
			"queue": stats,
			"jobs":  orchestrator.Registry().Len(),
		})
	})
}
