package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"pettit/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("community_name", func(fl validator.FieldLevel) bool {
		return ValidateCommunityName(fl.Field().String()) == nil
	})
	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.CommunityCategory(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.MembershipRole(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("trimmed_min", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Struct validates s against its `validate` tags and converts failures into a
// VALIDATION_ERROR carrying one entry per field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewValidationError(err.Error())
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return models.NewFieldValidationError(fields[0].Message, fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "trimmed_min":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "community_name":
		return "name must be 3-21 characters, contain only letters, numbers, and underscores, and not be reserved"
	case "category":
		return fmt.Sprintf("%s is not a known category", fe.Field())
	case "role":
		return fmt.Sprintf("%s must be one of member, moderator, admin", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
