package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

// RequireAdminKey authenticates admin requests against ADMIN_API_KEY. The
// key travels in X-Admin-Key or as a bearer token. When no key is
// configured the whole admin surface answers 503 rather than silently
// letting requests through.
func RequireAdminKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		configured := strings.TrimSpace(env.GetEnv("ADMIN_API_KEY", ""))
		if configured == "" {
			log.Error().Msg("admin request rejected, ADMIN_API_KEY is not configured")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "admin_disabled",
				"message": "Admin API is not configured",
			})
		}

		provided := extractAdminKey(c)
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Missing admin key",
			})
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid admin key",
			})
		}
		return c.Next()
	}
}

func extractAdminKey(c *fiber.Ctx) string {
	key := strings.TrimSpace(c.Get("X-Admin-Key"))
	if key != "" {
		return key
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
