package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQuestionChars    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects requests a handler should never see: POST bodies with a
// content type the API does not speak, and questions past the length cap.
// Anything it cannot positively rule out passes through so the handlers stay
// the single source of validation errors.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionChars == 0 {
		cfg.MaxQuestionChars = 5000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !typeAllowed(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if c.Method() == fiber.MethodPost && c.Path() == "/chat/query" {
			var req struct {
				Question string `json:"question"`
			}
			if err := c.BodyParser(&req); err == nil {
				if length := len([]rune(req.Question)); length > cfg.MaxQuestionChars {
					cfg.Logger.Warn("Oversized question rejected",
						zap.String("ip", c.IP()),
						zap.Int("length", length),
					)
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Question exceeds maximum length",
					})
				}
			}
		}

		return c.Next()
	}
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
