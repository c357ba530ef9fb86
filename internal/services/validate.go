package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"memory-map-backend/internal/models"
)

const dateOnly = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct's validate tags and reports the first failure
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return models.NewValidationError("", err.Error())
	}

	fe := ve[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required", "required_without":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		} else {
			msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return models.NewValidationError(field, msg)
}

// parseDate accepts RFC 3339 timestamps and plain dates
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, models.NewValidationError("date", "date must be an RFC 3339 timestamp or YYYY-MM-DD")
}

func checkPriority(p int) error {
	if p < models.MinPriority || p > models.MaxPriority {
		return models.NewValidationError("priority",
			fmt.Sprintf("priority must be between %d and %d", models.MinPriority, models.MaxPriority))
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
