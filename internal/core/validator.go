package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"growgent/internal/types"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator and registers the domain tags:
//
//	zone_type   one of fire_risk, psps, irrigation, custom
//	risk_level  one of critical, high, moderate, low, info
//	lng / lat   WGS84 longitude / latitude
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names, which are what clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "zone_type", func(fl validator.FieldLevel) bool {
		return types.ZoneType(fl.Field().String()).Valid()
	})
	mustRegister(v, "risk_level", func(fl validator.FieldLevel) bool {
		return types.RiskLevel(fl.Field().String()).Valid()
	})
	mustRegister(v, "lng", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= types.MinLon && f <= types.MaxLon
	})
	mustRegister(v, "lat", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= types.MinLat && f <= types.MaxLat
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validator: register %s: %v", tag, err))
	}
}

// ValidateStruct validates s and returns a *types.AppError whose code is
// derived from the first failure. Every failure is listed in
// Details["validation_errors"].
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: the caller passed a non-struct.
		v.logger.Error("struct validation misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fieldPath(fe),
			Code:    string(codeForTag(fe.Tag())),
			Message: messageFor(fe),
		})
	}

	first := errs[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		err,
		map[string]any{"validation_errors": errs},
	)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "zone_type":
		return types.ErrCodeValidationZoneType
	case "risk_level":
		return types.ErrCodeValidationRiskLevel
	case "lng", "lat":
		return types.ErrCodeValidationGeometry
	default:
		return types.ErrCodeValidationInvalidField
	}
}

func messageFor(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "zone_type":
		return fmt.Sprintf("%s must be one of %v", field, types.ZoneTypes)
	case "risk_level":
		return fmt.Sprintf("%s must be one of %v", field, types.RiskLevels)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "lng":
		return fmt.Sprintf("%s must be a longitude in [-180, 180]", field)
	case "lat":
		return fmt.Sprintf("%s must be a latitude in [-90, 90]", field)
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
