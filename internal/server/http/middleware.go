package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"reverc/internal/server/core"
)

// TokenValidator validates JWT tokens
type TokenValidator func(token string) (subject string, claims map[string]any, err error)

// AuthRequired enforces JWT authentication for protected endpoints
func AuthRequired(validateToken TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "missing authorization token",
				Code:  core.ErrUnauthorized,
			})
		}

		subject, _, err := validateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "invalid or expired token",
				Code:  core.ErrUnauthorized,
			})
		}

		c.Locals("subject", subject)
		return c.Next()
	}
}

// extractBearerToken extracts JWT token from Authorization header
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// contentTypeValidator ensures JSON endpoints receive application/json.
// Source uploads take multipart or raw bodies and are exempt.
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost || isSourceRoute(c.Path()) {
		return c.Next()
	}
	contentType := c.Get(fiber.HeaderContentType)
	if contentType == "" {
		return c.Next()
	}
	if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
			Error:   "unsupported media type",
			Code:    core.ErrInvalidContent,
			Details: "Content-Type must be application/json",
		})
	}
	return c.Next()
}

func isSourceRoute(path string) bool {
	return strings.HasPrefix(path, "/api/upload/") || strings.HasPrefix(path, "/api/admin/archive/")
}
