package routes

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

type validateRequest struct {
	InputData json.RawMessage `json:"input_data"`
	Content   string          `json:"content"`

	// GTFS file name to file text
	Files map[string]string `json:"files"`

	Format          string `json:"format"`
	ValidationLevel string `json:"validation_level"`
}

func ValidateRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Post("/", func(c *fiber.Ctx) error {
		var body validateRequest
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return sendError(c, fiber.StatusBadRequest, "Request body must be a JSON object")
		}

		level, err := formats.ParseLevel(body.ValidationLevel)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}

		request := jobs.ValidationRequest{
			Content:  body.Content,
			Format:   formats.Validation(body.Format),
			Level:    level,
			TenantID: TenantID(c),
		}

		if len(body.Files) > 0 {
			request.Files = make(map[string][]byte, len(body.Files))
			for name, text := range body.Files {
				request.Files[name] = []byte(text)
			}
		}

		if request.Content == "" && len(request.Files) == 0 {
			if request.Payload, err = inputData(body.InputData); err != nil {
				return sendError(c, fiber.StatusBadRequest, err.Error())
			}
		}

		report, err := orchestrator.Validate(c.UserContext(), request)
		if err != nil {
			return sendJobError(c, err)
		}

		return c.JSON(fiber.Map{
			"valid":  report.Valid(),
			"report": report,
		})
	})
}
