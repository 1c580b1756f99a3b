package http

import (
	"ticketing/entity"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() requestValidator {
	return requestValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return entity.Validation("invalid_request", err.Error())
	}
	return nil
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return entity.Validation("invalid_body", "request body could not be parsed")
	}
	return c.Validate(req)
}
