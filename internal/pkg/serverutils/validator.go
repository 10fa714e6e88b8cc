package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func ValidateRequest(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return NewAppError(
				fiber.StatusBadRequest,
				"VALIDATION_ERROR",
				fmt.Sprintf("field '%s' failed on the '%s' rule", first.Field(), first.Tag()),
			)
		}
		return NewAppError(fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
	return nil
}
