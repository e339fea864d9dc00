package backend

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

// ErrInvalidPayload is returned before dispatch when a request payload fails validation.
var ErrInvalidPayload = errs.ErrInvalidPayload

type payloadValidator struct {
	validate *validator.Validate
}

func newPayloadValidator() *payloadValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so messages match what the backend would say.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return &payloadValidator{validate: v}
}

func (v *payloadValidator) Validate(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errs.As(err, &validationErrs) {
		return errs.Wrapf(ErrInvalidPayload, "%v", err)
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, describe(fieldErr))
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(messages, "; "))
}

func describe(fieldErr validator.FieldError) string {
	field := fieldErr.Field()
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date and time", field)
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed validation for %s", field, fieldErr.Tag())
	}
}
