// Package validate checks input structs against their `validate` tags.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
)

var (
	slugRegex           = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	permissionCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(?::[a-z][a-z0-9]*)+$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = val.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})
	_ = val.RegisterValidation("permcode", func(fl validator.FieldLevel) bool {
		return IsPermissionCode(fl.Field().String())
	})
	return val
}

// IsSlug reports whether s is lowercase alphanumerics separated by single hyphens.
func IsSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// IsPermissionCode reports whether s looks like "resource:action" with at
// least two lowercase segments.
func IsPermissionCode(s string) bool {
	return permissionCodeRegex.MatchString(s)
}

// Struct validates s and returns a BadRequest listing the failing fields.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest("Invalid input: %v", err)
	}

	details := make(map[string]string, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)

	e := apperr.BadRequest("Validation failed: %s", strings.Join(fields, ", "))
	e.Details = details
	return e
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " long"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "slug":
		return "must be lowercase alphanumeric with hyphens"
	case "permcode":
		return "must look like resource:action"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
