package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/heladeria/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// storeError passes domain errors through and reports anything else as the
// store being unavailable, keeping the cause.
func storeError(err error) error {
	if err == nil || domain.IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

// validateStruct runs the struct's validate tags and converts failures into
// a domain.ValidationError keyed by lower-cased field name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	ve := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields[fieldName(fe.Field())] = describe(fe)
	}
	return ve
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	}
	return "failed " + fe.Tag()
}

func fieldName(s string) string {
	out := make([]byte, 0, len(s)+2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
