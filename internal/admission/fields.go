package admission

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so the missing list matches what the storefront sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if s, ok := field.Interface().(FlexString); ok {
			return string(s)
		}
		return nil
	}, FlexString(""))

	// A present jet_card satisfies required regardless of its value
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if b, ok := field.Interface().(FlexBool); ok {
			return b.Present
		}
		return nil
	}, FlexBool{})

	return v
}

// MissingFields lists every required field that is absent or empty, in
// payload order. It never stops at the first violation.
func MissingFields(s *Submission) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fieldPath(fe.Namespace()))
	}

	return missing
}

// Drops the root struct name: "Submission.items[0].jet_quantity" -> "items[0].jet_quantity"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
