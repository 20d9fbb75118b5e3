package common

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GenericEchoValidator runs struct tag validation for echo's c.Validate.
// Create it with NewGenericEchoValidator.
type GenericEchoValidator struct {
	Validator *validator.Validate
}

func NewGenericEchoValidator() *GenericEchoValidator {
	return &GenericEchoValidator{Validator: validator.New()}
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %s", describeValidationError(err)))
	}
	return nil
}

// describeValidationError lists failing fields as "field:tag" pairs.
func describeValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err.Error()
	}
	msg := ""
	for i, fieldErr := range validationErrors {
		if i > 0 {
			msg += ", "
		}
		msg += fmt.Sprintf("%s:%s", fieldErr.Field(), fieldErr.Tag())
	}
	return msg
}
