package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator for request bodies
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// GetValidator returns the underlying validator instance
func (v *Validator) GetValidator() *validator.Validate {
	return v.validate
}

// ValidateStruct validates a struct using its validate tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationError turns validation errors into a field -> message map
func FormatValidationError(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["_"] = err.Error()
		return errs
	}

	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			errs[field] = "This field is required"
		case "email":
			errs[field] = "Invalid email format"
		case "min":
			errs[field] = fmt.Sprintf("Must be at least %s characters", e.Param())
		case "max":
			errs[field] = fmt.Sprintf("Must be at most %s characters", e.Param())
		case "alphanum":
			errs[field] = "Must contain only letters and digits"
		case "gt":
			errs[field] = fmt.Sprintf("Must be greater than %s", e.Param())
		case "lte":
			errs[field] = fmt.Sprintf("Must be at most %s", e.Param())
		case "gte":
			errs[field] = fmt.Sprintf("Must be at least %s", e.Param())
		case "oneof":
			errs[field] = fmt.Sprintf("Must be one of: %s", e.Param())
		case "printascii":
			errs[field] = "Must contain printable ASCII only"
		default:
			errs[field] = "Invalid value"
		}
	}

	return errs
}
