package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/tsiconverter/pkg/api/routes"
	"github.com/travigo/tsiconverter/pkg/jobs"
)

// bodyLimit bounds uploaded documents
const bodyLimit = 64 * 1024 * 1024

func NewApp(orchestrator *jobs.Orchestrator) *fiber.App {
	webApp := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          routes.ErrorHandler,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)
	webApp.Get("health", routes.Health)

	routes.ConvertRouter(webApp, orchestrator)
	routes.ValidateRouter(webApp.Group("/validate"), orchestrator)
	routes.StatusRouter(webApp.Group("/status"), orchestrator)
	routes.ArtifactsRouter(webApp.Group("/artifacts"), orchestrator)
	routes.DownloadRouter(webApp.Group("/download"), orchestrator)
	routes.JobsRouter(webApp.Group("/jobs"), orchestrator)
	routes.StatsRouter(webApp.Group("/stats"), orchestrator)

	return webApp
}

func SetupServer(listen string, orchestrator *jobs.Orchestrator) error {
	return NewApp(orchestrator).Listen(listen)
}
