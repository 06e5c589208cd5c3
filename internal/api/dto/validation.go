package dto

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/repair-desk/internal/domain"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// Validator checks request payloads and reports failures keyed by JSON name.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the ticket enum rules on a fresh validator.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"service_type": func(fl validator.FieldLevel) bool {
			return domain.ServiceType(fl.Field().String()).Valid()
		},
		"urgency": func(fl validator.FieldLevel) bool {
			return domain.UrgencyLevel(fl.Field().String()).Valid()
		},
		"ticket_status": func(fl validator.FieldLevel) bool {
			return domain.TicketStatus(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation(tag, fn)
	}
	return &Validator{validate: v}
}

// Struct validates s and returns a VALIDATION_FAILED error with one detail per field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldErrorMessage(fe)
	}
	return apperrors.NewValidationError("invalid ticket fields", details)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = errs
	}
	return ok
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "service_type", "urgency", "ticket_status":
		return fmt.Sprintf("unknown %s", strings.ReplaceAll(fe.Tag(), "_", " "))
	default:
		return fmt.Sprintf("failed validation for '%s'", fe.Tag())
	}
}
