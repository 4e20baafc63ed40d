package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

func StatusRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Get("/:identifier", func(c *fiber.Ctx) error {
		status, err := orchestrator.Status(c.Params("identifier"), TenantID(c))
		if err != nil {
			return sendJobError(c, err)
		}

		return sendStatus(c, status)
	})
}

func JobsRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Delete("/:identifier", func(c *fiber.Ctx) error {
		status, err := orchestrator.Cancel(c.Params("identifier"), TenantID(c))
		if err != nil {
			return sendJobError(c, err)
		}

		return sendStatus(c, status)
	})
}

func sendStatus(c *fiber.Ctx, status jobs.Status) error {
	groups := []string{"basic"}
	if c.QueryBool("detailed") {
		groups = []string{"basic", "detailed"}
	}

	reducedStatus, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, status)
	if err != nil {
		return sendJobError(c, err)
	}

	return c.JSON(reducedStatus)
}
