package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/internal/pkg/env"
)

// APIKeyAuthMiddleware authenticates requests against the static access
// token. Read APIs and the live stream sit behind it.
func APIKeyAuthMiddleware(log *logrus.Logger) fiber.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *fiber.Ctx) error {
		validKey := env.GetEnv("API_ACCESS_TOKEN", "")
		if validKey == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API access token is not configured"})
		}

		apiKey := extractAPIKey(c)
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) != 1 {
			log.Warnf("unauthorized access attempt from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or missing API key"})
		}

		return c.Next()
	}
}

// extractAPIKey checks the header first, then the api_key query
// parameter. Browser websocket clients cannot set headers on the
// upgrade request, so the stream endpoint depends on the query form.
func extractAPIKey(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Query("api_key"))
}
