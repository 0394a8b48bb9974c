package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct runs the validate tags of s and reports the first failure
// as a ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		if fe.Param() != "" {
			return entity.Validationf("field %s failed on the '%s=%s' rule", fe.Field(), fe.Tag(), fe.Param())
		}
		return entity.Validationf("field %s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
	return entity.Validationf("invalid request: %v", err)
}
