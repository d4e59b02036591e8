package middleware

import (
	"slices"
	"strings"

	"storefront/internal/logging"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const identityKey = "identity"

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	ResolveIdentity(token string) (services.Identity, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		identity, err := resolver.ResolveIdentity(parts[1])
		if err != nil {
			logging.FromContext(c.UserContext()).Info("JWT validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		c.Locals(identityKey, identity)
		c.Locals("user_id", identity.UserID)
		c.Locals("username", identity.Username)

		logger := logging.FromContext(c.UserContext()).With(zap.String("user_id", identity.UserID))
		c.SetUserContext(logging.ContextWithLogger(c.UserContext(), logger))
		return c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after AuthRequired.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFrom(c)
		if !slices.Contains(roles, identity.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired, or the zero Identity.
func IdentityFrom(c *fiber.Ctx) services.Identity {
	identity, _ := c.Locals(identityKey).(services.Identity)
	return identity
}
