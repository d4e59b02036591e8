package middleware

import (
	"storefront/internal/logging"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger stores a request-scoped logger in the request's user context.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqLogger := logger.With(
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		if id := c.Get(fiber.HeaderXRequestID); id != "" {
			reqLogger = reqLogger.With(zap.String("request_id", id))
		}
		c.SetUserContext(logging.ContextWithLogger(c.UserContext(), reqLogger))
		return c.Next()
	}
}
