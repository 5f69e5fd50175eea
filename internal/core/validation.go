// AngelaMos | 2026
// validation.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator reports fields by their JSON names so error details line up with
// what the client sent.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FormatValidationError keeps the first failure per field.
func FormatValidationError(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: "invalid request"}}
	}

	seen := make(map[string]struct{}, len(verrs))
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, FieldError{
			Field:   field,
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid e-mail"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), lowerFirst(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "hexadecimal", "len":
		return fe.Field() + " is malformed"
	default:
		return fe.Field() + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// DecodeAndValidate reads a JSON body into dst and runs struct validation,
// writing the error response itself. It returns false when the handler should stop.
func DecodeAndValidate(
	w http.ResponseWriter,
	r *http.Request,
	v *validator.Validate,
	dst any,
) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}

	if err := v.Struct(dst); err != nil {
		JSONError(w, ValidationError(FormatValidationError(err)))
		return false
	}

	return true
}
