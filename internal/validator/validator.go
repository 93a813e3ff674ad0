// Package validator wraps go-playground/validator with the extra struct
// tags the admin REST surface needs (a hex color for player marks) and a
// bind-and-validate helper that reports failures in this codebase's
// AppError shape instead of a bare JSON map.
package validator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/streamspace/statehub/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("hexcolor", validateHexColor)
}

// ValidateStruct validates a struct against its binding tags.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateRequest validates a struct and returns a field->message map, or
// nil if validation passed.
func ValidateRequest(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := strings.ToLower(e.Field())
			errs[field] = formatValidationError(e)
		}
	}
	return errs
}

// BindAndValidate binds the request JSON body into req and validates it in
// one step, writing a 400 AppError response and returning false on failure.
func BindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.BadRequest("invalid request body").ToResponse())
		return false
	}

	if errs := ValidateRequest(req); errs != nil {
		parts := make([]string, 0, len(errs))
		for field, msg := range errs {
			parts = append(parts, field+": "+msg)
		}
		c.JSON(http.StatusBadRequest, apperrors.NewWithDetails(
			apperrors.ErrCodeValidationFailed, "validation failed", strings.Join(parts, "; "),
		).ToResponse())
		return false
	}

	return true
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hexcolor":
		return "must be a #RRGGBB hex color"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// validateHexColor requires a "#" followed by exactly 6 hex digits, the
// marker-color format the map overlay expects.
func validateHexColor(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if len(v) != 7 || v[0] != '#' {
		return false
	}
	for _, c := range v[1:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
