package services

import (
	"storefront/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateInput runs struct validation and reports failures as validation errors.
func validateInput(v any, what string) error {
	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid %s", what)
	}
	return nil
}
