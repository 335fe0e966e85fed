// Package validation checks request structs with go-playground/validator and
// turns failures into field-level apperror values that forms can render.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// get returns the shared validator. Field names are taken from the form tag
// so error keys match input names in the HTML.
func get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// Struct validates v. It returns nil when v is valid, and otherwise a 422
// *apperror.AppError whose Fields map holds one message per failing field.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewInternal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return apperror.NewValidationFields("Please fix the highlighted fields.", fields)
}

// message renders a FieldError the way the form shows it.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required."
	case "min":
		return "Minimum " + fe.Param() + " characters."
	case "max":
		return "Maximum " + fe.Param() + " characters."
	default:
		return "Invalid value."
	}
}
