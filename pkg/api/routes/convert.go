package routes

import (
	"encoding/json"
	"errors"
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

type convertRequest struct {
	InputData    json.RawMessage `json:"input_data"`
	OutputFormat string          `json:"output_format"`
	Options      jobs.Options    `json:"options"`
}

func ConvertRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Post("/convert", func(c *fiber.Ctx) error {
		return convert(c, orchestrator, "")
	})
	router.Post("/convert/:format", func(c *fiber.Ctx) error {
		return convert(c, orchestrator, c.Params("format"))
	})
	router.Post("/upload", func(c *fiber.Ctx) error {
		return upload(c, orchestrator)
	})
}

func convert(c *fiber.Ctx, orchestrator *jobs.Orchestrator, format string) error {
	var body convertRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return sendError(c, fiber.StatusBadRequest, "Request body must be a JSON object")
	}

	if format == "" {
		format = body.OutputFormat
	}

	payload, err := inputData(body.InputData)
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, err.Error())
	}

	return submit(c, orchestrator, jobs.Request{
		Payload: payload,
		Target:  formats.Target(format),
		Options: body.Options,
	})
}

// upload takes the document as the raw body, options come from the query
func upload(c *fiber.Ctx, orchestrator *jobs.Orchestrator) error {
	if len(c.Body()) == 0 {
		return sendError(c, fiber.StatusBadRequest, "Request body must contain the document")
	}

	options := jobs.Options{}
	for key, value := range c.Queries() {
		if key != "output_format" {
			options[key] = value
		}
	}

	return submit(c, orchestrator, jobs.Request{
		Payload: append([]byte(nil), c.Body()...),
		Charset: requestCharset(c),
		Target:  formats.Target(c.Query("output_format")),
		Options: options,
	})
}

func submit(c *fiber.Ctx, orchestrator *jobs.Orchestrator, request jobs.Request) error {
	request.TenantID = TenantID(c)

	jobID, err := orchestrator.Submit(c.UserContext(), request)
	if err != nil {
		return sendJobError(c, err)
	}

	c.Status(fiber.StatusAccepted)
	return c.JSON(fiber.Map{
		"job_id": jobID,
		"status": jobs.StateQueued,
	})
}

// inputData accepts the document inline or as a JSON encoded string
func inputData(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("input_data is required")
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		return []byte(text), nil
	}

	return []byte(raw), nil
}

func requestCharset(c *fiber.Ctx) string {
	_, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil {
		return ""
	}

	return params["charset"]
}
