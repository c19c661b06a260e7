package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/internal/rag"
	"github.com/factorymind/backend/pkg/logger"
)

type QueryHandler struct {
	engine *rag.Engine
}

func NewQueryHandler(engine *rag.Engine) *QueryHandler {
	return &QueryHandler{
		engine: engine,
	}
}

func (h *QueryHandler) Query(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	start := time.Now()
	answer, err := h.engine.Answer(c.Context(), question)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to answer query", zap.Error(err))
		return errorJSON(c, err)
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()

	return c.JSON(answer)
}
