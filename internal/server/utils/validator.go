package utils

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

// GetValidator returns the request validator. Field names in errors follow
// the json tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func FormatValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Value:   fe.Value(),
				Tag:     fe.Tag(),
				Message: getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	numeric := err.Kind() >= reflect.Int && err.Kind() <= reflect.Float64

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		if numeric {
			return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", err.Field(), err.Param())
	case "max":
		if numeric {
			return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters long", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

func ValidateStruct(s any) []ValidationError {
	if err := GetValidator().Struct(s); err != nil {
		return FormatValidationErrors(err)
	}
	return nil
}
