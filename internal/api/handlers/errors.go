package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/factorymind/backend/internal/analysis"
	"github.com/factorymind/backend/internal/chunk"
	"github.com/factorymind/backend/internal/extract"
	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/rag"
	"github.com/factorymind/backend/internal/report"
	"github.com/factorymind/backend/internal/storage/sqlite"
)

// statusFor maps core errors onto HTTP status codes. Rate limits are checked
// before the general provider failures so a 429 survives being wrapped in
// ErrGenerationUnavailable.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chunk.ErrEmptyDocument),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, analysis.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, sqlite.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, llm.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, llm.ErrProviderUnavailable),
		errors.Is(err, rag.ErrGenerationUnavailable),
		errors.Is(err, report.ErrGenerationUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
