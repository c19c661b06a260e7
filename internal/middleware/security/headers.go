package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	Development    bool
}

// HeadersMiddleware sets the response headers appropriate for a JSON API
// that is never rendered as a page.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !cfg.Development {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		csp := "default-src 'none'; frame-ancestors 'none'"
		if len(cfg.AllowedOrigins) > 0 {
			csp += "; connect-src 'self' " + strings.Join(cfg.AllowedOrigins, " ")
		}
		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}
