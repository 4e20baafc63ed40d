package routes

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

type artifactFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

type artifactListing struct {
	JobID        string         `json:"job_id"`
	OutputFormat formats.Target `json:"output_format"`
	Files        []artifactFile `json:"files"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

func ArtifactsRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Get("/:identifier", func(c *fiber.Ctx) error {
		artifact, err := orchestrator.Artifact(c.UserContext(), c.Params("identifier"), TenantID(c))
		if err != nil {
			return sendJobError(c, err)
		}

		listing := artifactListing{
			JobID:        artifact.JobID,
			OutputFormat: artifact.Target,
			Files:        []artifactFile{},
			CreatedAt:    artifact.CreatedAt,
			ExpiresAt:    artifact.ExpiresAt,
		}
		for _, name := range artifact.Names() {
			listing.Files = append(listing.Files, artifactFile{
				Name:        name,
				ContentType: jobs.ContentType(name),
				Size:        len(artifact.Files[name]),
				URL:         fmt.Sprintf("/artifacts/%s/%s", artifact.JobID, name),
			})
		}

		return c.JSON(listing)
	})
	router.Get("/:identifier/:filename", func(c *fiber.Ctx) error {
		return download(c, orchestrator)
	})
}

// DownloadRouter serves the same files under the older download path
func DownloadRouter(router fiber.Router, orchestrator *jobs.Orchestrator) {
	router.Get("/:identifier/:filename", func(c *fiber.Ctx) error {
		return download(c, orchestrator)
	})
}

func download(c *fiber.Ctx, orchestrator *jobs.Orchestrator) error {
	artifact, err := orchestrator.Artifact(c.UserContext(), c.Params("identifier"), TenantID(c))
	if err != nil {
		return sendJobError(c, err)
	}

	filename := c.Params("filename")
	data, err := artifact.File(filename)
	if err != nil {
		return sendJobError(c, err)
	}

	c.Set(fiber.HeaderContentType, jobs.ContentType(filename))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))

	return c.Send(data)
}
