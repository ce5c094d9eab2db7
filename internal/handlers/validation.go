package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"

	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

const maxFormMemory = 1 << 20

var (
	// Global validator instance (reused across all handlers)
	validate    = newValidator()
	formDecoder = form.NewDecoder()

	postalCodePattern = regexp.MustCompile(`^[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d$`)
	phonePattern      = regexp.MustCompile(`^(\+?1[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under the names the client submitted.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("ca_postal", func(fl validator.FieldLevel) bool {
		return postalCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("ca_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return pkgauth.ValidatePassword(fl.Field().String()) == nil
	})

	return v
}

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", names[0], e.Fields[names[0]])
}

// ValidateRequest validates a request struct using go-playground/validator.
// Field failures come back as a *ValidationError.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validation failed: %w", err)
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = formatValidationError(fe)
		}
	}
	return &ValidationError{Fields: fields}
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "number":
		return "must be a number"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "ca_postal":
		return "must be a valid postal code (A1A 1A1)"
	case "ca_phone":
		return "must be a valid phone number"
	case "strong_password":
		return pkgauth.PasswordPolicyMessage
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// bindRequest decodes a browser form or a JSON body into dst. An empty
// JSON body leaves dst untouched.
func bindRequest(r *http.Request, dst any) error {
	if pkghttp.IsFormPost(r) {
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			err = r.ParseMultipartForm(maxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return fmt.Errorf("invalid form: %w", err)
		}
		return formDecoder.Decode(dst, r.PostForm)
	}

	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeValidationError answers 422 with the per-field messages, or 400 when
// err is not a field failure.
func writeValidationError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", ve.Fields)
		return
	}
	pkghttp.WriteBadRequest(w, err.Error())
}

// fieldErrors merges a validation result with handler-level checks.
func fieldErrors(err error) (map[string]string, error) {
	fields := map[string]string{}
	if err == nil {
		return fields, nil
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	for k, v := range ve.Fields {
		fields[k] = v
	}
	return fields, nil
}
