package httputil

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// WriteError standardizes JSON error responses as {"error": msg}.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// ClientKey identifies the caller for rate limiting. Behind a proxy set
// server.proxy_header so fiber resolves the forwarded address.
func ClientKey(c *fiber.Ctx) string {
	return c.IP()
}
