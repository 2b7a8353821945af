package core

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"epigrid/internal/types"
)

// Validator wraps go-playground/validator for request DTO validation.
// Field errors are reported under the field's JSON name so clients can map
// them back to the payload they sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator with JSON-aware field naming.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors against json tag names, not Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates a request DTO against its struct tags. It returns
// nil on success, or a *types.AppError with code "validation_malformed_payload"
// whose details map each offending field to the rule it violated.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the caller passed a non-struct.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation target must be a struct", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fieldErr := range validationErrs {
		rule := fieldErr.Tag()
		if param := fieldErr.Param(); param != "" {
			rule += "=" + param
		}
		details[fieldErr.Field()] = rule
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationPayload,
		"request payload failed validation",
		err,
		details,
	)
}
