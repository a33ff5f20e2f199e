package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	accessCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,63}$`)
	scopeIDPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
)

// newInputValidator создаёт общий валидатор с правилами accesscode и scopeid.
func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("accesscode", func(fl validator.FieldLevel) bool {
		return accessCodePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("scopeid", func(fl validator.FieldLevel) bool {
		return scopeIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct переводит validator.ValidationErrors в ErrValidation
// с перечнем полей и нарушенных правил.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return validationError("%v", err)
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return validationError("%s", strings.Join(parts, ", "))
}
