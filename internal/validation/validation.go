package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	tagWebURL   = "weburl"
	tagUsername = "username"
	tagMaxBytes = "maxbytes"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Error carries field-level validation messages keyed by the JSON field name.
type Error struct {
	Fields map[string][]string
}

// NewError returns an Error holding a single message for field.
func NewError(field, message string) *Error {
	validationErr := &Error{Fields: map[string][]string{}}
	validationErr.Add(field, message)
	return validationErr
}

// Add appends a message for field.
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator checks tagged structs and reports failures as *Error.
type Validator struct {
	validate *validator.Validate
}

// New builds a Validator that names fields by their json tag and knows the
// weburl, username and maxbytes rules.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	// Registration only fails for empty tags or nil funcs.
	_ = validate.RegisterValidation(tagWebURL, isWebURL)
	_ = validate.RegisterValidation(tagUsername, isUsername)
	_ = validate.RegisterValidation(tagMaxBytes, isWithinBytes)
	return &Validator{validate: validate}
}

// Struct validates value. It returns nil, an *Error, or the underlying
// validator error when value is not a struct.
func (v *Validator) Struct(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	validationErr := &Error{Fields: map[string][]string{}}
	for _, fieldErr := range fieldErrors {
		validationErr.Add(fieldErr.Field(), message(fieldErr))
	}
	return validationErr
}

// ValidWebURL reports whether raw is an absolute http or https URL with a host.
func ValidWebURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func isWebURL(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return ValidWebURL(fl.Field().String())
}

func isUsername(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return usernamePattern.MatchString(fl.Field().String())
}

// isWithinBytes bounds the encoded length; max counts runes.
func isWithinBytes(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	default:
		return name
	}
}

func message(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fieldErr.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fieldErr.Param())
	case "email":
		return "Enter a valid email address."
	case "hexcolor":
		return "Enter a valid hex color, e.g. #ffffff."
	case "eqfield":
		return "The two password fields didn't match."
	case tagWebURL:
		return "Enter a valid URL."
	case tagMaxBytes:
		return fmt.Sprintf("Ensure this field has no more than %s bytes.", fieldErr.Param())
	case tagUsername:
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fieldErr.Tag())
	}
}
