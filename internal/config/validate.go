package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		validate.RegisterValidation("latitude", validateLatitude)
		validate.RegisterValidation("longitude", validateLongitude)
		validate.RegisterStructValidation(validateLocation, LocationConfig{})
	})
	return validate
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90.0 && lat <= 90.0
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180.0 && lon <= 180.0
}

func validateLocation(sl validator.StructLevel) {
	loc := sl.Current().Interface().(LocationConfig)
	if loc.City != "" {
		return
	}
	if loc.Lat == nil {
		sl.ReportError(loc.Lat, "lat", "Lat", "city_or_coordinates", "")
	}
	if loc.Lon == nil {
		sl.ReportError(loc.Lon, "lon", "Lon", "city_or_coordinates", "")
	}
}

// Validate checks the loaded configuration and reports every problem in one
// error wrapping ErrConfig.
func Validate(cfg *Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		if cfg.Subscribers.Backend == "valkey" && cfg.Subscribers.Valkey.Addr == "" {
			return fmt.Errorf("%w: subscribers.valkey.addr is required for the valkey backend", ErrConfig)
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "latitude":
		return fmt.Sprintf("%s must be a latitude between -90 and 90", field)
	case "longitude":
		return fmt.Sprintf("%s must be a longitude between -180 and 180", field)
	case "city_or_coordinates":
		return fmt.Sprintf("%s: location needs either city or lat/lon", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a time of day in HH:MM format", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
