package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/factorymind/backend/internal/api/handlers"
	"github.com/factorymind/backend/internal/metrics"
)

// Handlers bundles the HTTP handlers the router wires up.
type Handlers struct {
	Documents *handlers.DocumentHandler
	Query     *handlers.QueryHandler
	Reports   *handlers.ReportHandler
	Health    *handlers.HealthHandler
}

// RegisterRoutes attaches every endpoint to the app. Middleware is the
// caller's concern; only the route table lives here.
func RegisterRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	app.Get("/metrics", metrics.MetricsHandler())
	app.Get("/history", h.Health.History)

	app.Post("/upload/document", h.Documents.UploadDocument)
	app.Post("/upload/data", h.Reports.UploadData)
	app.Get("/documents", h.Documents.ListDocuments)
	app.Delete("/documents/:filename", h.Documents.DeleteDocument)

	app.Post("/chat/query", h.Query.Query)

	app.Post("/report/generate", h.Reports.GenerateReport)
	app.Get("/reports", h.Reports.ListReports)
	app.Get("/reports/:id", h.Reports.GetReport)
	app.Get("/reports/:id/download", h.Reports.DownloadReport)
	app.Delete("/reports/:id", h.Reports.DeleteReport)
}
