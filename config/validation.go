package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report config keys rather than Go field names
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the merged settings and returns the first problem as a *ConfigError.
// The retry_policy value is deliberately not checked here; the retry factory rejects
// unknown names when a client is constructed.
func Validate(s *Settings) error {
	err := settingsValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &ConfigError{Category: "invalid", Message: "configuration could not be validated", Err: err}
	}

	fe := validationErrors[0]
	field := strings.TrimPrefix(fe.Namespace(), "Settings.")
	return NewInvalidFieldError(field, describe(fe), options(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s (got %v)", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s (got %v)", fe.Param(), fe.Value())
	case "required", "required_unless":
		return "is required"
	case "url":
		return fmt.Sprintf("must be a valid URL (got %q)", fe.Value())
	case "oneof":
		return fmt.Sprintf("value %q is not supported", fe.Value())
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}

func options(fe validator.FieldError) []string {
	if fe.Tag() != "oneof" {
		return nil
	}
	return strings.Fields(fe.Param())
}
