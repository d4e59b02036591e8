package handlers

import (
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindStateConflict, apperr.KindInsufficientStock, apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindGateway:
		return fiber.StatusBadGateway
	case apperr.KindUnauthenticated:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body with the status of its kind.
func respondError(c *fiber.Ctx, err error, message string) error {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	log := logging.FromContext(c.UserContext()).With(
		zap.String("path", c.Path()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	if status >= fiber.StatusInternalServerError {
		log.Error(message)
	} else {
		log.Info(message)
	}

	body := fiber.Map{
		"message": message,
		"code":    kind,
		"error":   err.Error(),
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		body["errors"] = fieldErrors(ve)
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"code":    apperr.KindValidation,
		"error":   err.Error(),
	})
}

func fieldErrors(ve validator.ValidationErrors) map[string]string {
	errorMessages := make(map[string]string, len(ve))
	for _, e := range ve {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return errorMessages
}
