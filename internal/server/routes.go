package server

import (
	"leadscraper/internal/core/export"
	"leadscraper/internal/core/scrape"
	"leadscraper/internal/core/stream"
	"leadscraper/internal/health"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Scrape   *scrape.Service
	Store    *scrape.Store
	Stream   *stream.Service
	Export   *export.Service
	Provider health.ProviderCheck
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Provider, d.Store)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	scrapeHandler := scrape.NewHandler(d.Scrape, d.Store)
	api.Post("/scrape", scrapeHandler.HandleSubmit)
	api.Get("/scrape/:jobId", scrapeHandler.HandleStatus)

	streamHandler := stream.NewHandler(d.Stream)
	api.Get("/sse/progress/:jobId", streamHandler.HandleProgress)

	exportHandler := export.NewHandler(d.Export)
	api.Get("/export/csv/:jobId", exportHandler.HandleCSV)
	api.Get("/export/json/:jobId", exportHandler.HandleJSON)

	return healthHandler
}
