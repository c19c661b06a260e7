package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/ingest"
	"github.com/factorymind/backend/internal/report"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/pkg/logger"
)

type HealthHandler struct {
	processor *ingest.Processor
	reports   *report.Engine
	indexPath string
}

func NewHealthHandler(processor *ingest.Processor, reports *report.Engine, indexPath string) *HealthHandler {
	return &HealthHandler{
		processor: processor,
		reports:   reports,
		indexPath: indexPath,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	stats, err := h.processor.Stats(c.Context())
	if err != nil {
		logger.Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	reportCount, err := h.reports.Count()
	if err != nil {
		logger.Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":        "healthy",
		"timestamp":     time.Now().Format(time.RFC3339),
		"documents":     stats.Documents,
		"chunks":        stats.Chunks,
		"index_entries": stats.IndexEntries,
		"reports":       reportCount,
		"index_path":    h.indexPath,
	})
}

// History lists everything the assistant has remembered: every ingested
// document and every stored report, newest first.
func (h *HealthHandler) History(c *fiber.Ctx) error {
	docs, err := h.processor.ListDocuments()
	if err != nil {
		logger.Error("Failed to list documents for history", zap.Error(err))
		return errorJSON(c, err)
	}
	if docs == nil {
		docs = []models.Document{}
	}

	reports, err := h.reports.List()
	if err != nil {
		logger.Error("Failed to list reports for history", zap.Error(err))
		return errorJSON(c, err)
	}
	if reports == nil {
		reports = []models.Report{}
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"documents": fiber.Map{
			"count": len(docs),
			"items": docs,
		},
		"reports": fiber.Map{
			"count": len(reports),
			"items": reports,
		},
	})
}
