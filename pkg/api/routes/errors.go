package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

const internalError = "internal failure, retry the request"

func TenantID(c *fiber.Ctx) string {
	if tenantID := c.Get("X-Tenant-ID"); tenantID != "" {
		return tenantID
	}

	return jobs.DefaultTenant
}

func sendError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": message,
	})
}

// sendJobError maps orchestrator errors onto status codes, anything unknown
// is logged and reported as a generic internal failure
func sendJobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, jobs.ErrUnsupportedFormat), errors.Is(err, jobs.ErrInvalidOptions):
		return sendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, jobs.ErrFileNotFound):
		return sendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrNotReady), errors.Is(err, jobs.ErrTerminal):
		return sendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		return sendError(c, fiber.StatusTooManyRequests, err.Error())
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	return sendError(c, fiber.StatusInternalServerError, internalError)
}

func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return sendError(c, fiberError.Code, fiberError.Message)
	}

	return sendJobError(c, err)
}
