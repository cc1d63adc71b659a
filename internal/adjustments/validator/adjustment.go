package validator

import (
	"errors"
	"fmt"
	"reflect"
	"seatflow/pkg/daytime"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as a field -> message map for error responses.
func (v ValidationErrors) Details() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type AdjustmentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAdjustmentValidator(log *logger.Logger) *AdjustmentValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Unset minutes validate as absent so omitempty skips them.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		m, ok := field.Interface().(model.Minutes)
		if !ok {
			return nil
		}
		if value, set := m.Get(); set {
			return value
		}
		return nil
	}, model.Minutes{})

	if err := v.RegisterValidation("day_minutes", validateDayMinutes); err != nil {
		log.Fatal("Failed to register 'day_minutes' validator",
			"error", err,
		)
	}

	log.Info("Adjustment validator initialized successfully")

	return &AdjustmentValidator{
		validate: v,
		logger:   log,
	}
}

func validateDayMinutes(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		m := field.Int()
		return m >= 0 && m <= daytime.MaxMinutes
	}
	return false
}

func (v *AdjustmentValidator) Validate(patch *model.DurationAdjustment) error {
	if patch.Empty() {
		return ValidationErrors{
			ValidationError{
				Field:   "adjustment",
				Message: "at least one of start or end is required",
			},
		}
	}

	if err := v.validate.Struct(patch); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	start, hasStart := patch.Start.Get()
	end, hasEnd := patch.End.Get()
	if hasStart && hasEnd && end <= start {
		return ValidationErrors{
			ValidationError{
				Field:   "end",
				Message: "end must be after start",
			},
		}
	}

	return nil
}

func (v *AdjustmentValidator) ValidateKind(kind model.Kind) error {
	if !kind.Valid() {
		return ValidationErrors{
			ValidationError{
				Field:   "kind",
				Message: fmt.Sprintf("kind must be one of: %s %s", model.KindRegular, model.KindEvent),
			},
		}
	}
	return nil
}

func (v *AdjustmentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "day_minutes":
			message = fmt.Sprintf("%s must be between 0 and %d minutes", err.Field(), daytime.MaxMinutes)
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
