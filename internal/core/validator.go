package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"mealtrack/internal/types"
)

// Validator wraps go-playground/validator for request struct validation.
// Handlers call ValidateStruct after DecodeJSON; failures are translated
// into field-keyed AppError details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateStruct validates dst against its `validate` struct tags.
// On failure it returns a *types.AppError with code
// "validation_missing_required_field" for missing fields, or
// "validation_field_out_of_range" for other rule violations, with a
// field -> rule map in the error details.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the input was not a struct. Programming
		// error, surfaced as internal.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	details := make(map[string]any, len(verrs))
	missing := false
	for _, fe := range verrs {
		details[fieldName(fe)] = fe.Tag()
		if fe.Tag() == "required" {
			missing = true
		}
	}

	code := types.ErrCodeValidationFieldRange
	message := "one or more fields are out of range"
	if missing {
		code = types.ErrCodeValidationMissingField
		message = "one or more required fields are missing"
	}

	return types.NewAppErrorWithDetails(code, message, err, details)
}

// fieldName lowercases the struct field name to match the JSON convention
// used by the API contracts (snake_case fields are already lowercase; this
// keeps single-word fields consistent).
func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}
