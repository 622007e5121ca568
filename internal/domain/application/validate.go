package application

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var (
	aadhaarPattern = regexp.MustCompile(`^\d{4}[- ]?\d{4}[- ]?\d{4}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
)

// nowFunc is swapped in tests that need a fixed "today".
var nowFunc = time.Now

// RegisterValidations installs the application rules on v and makes field
// errors report JSON names. The gin binding engine and the domain validator
// share the same rules.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)

	rules := map[string]validator.Func{
		"aadhaar":    func(fl validator.FieldLevel) bool { return aadhaarPattern.MatchString(fl.Field().String()) },
		"pan":        func(fl validator.FieldLevel) bool { return panPattern.MatchString(fl.Field().String()) },
		"dob":        func(fl validator.FieldLevel) bool { return validDateOfBirth(fl.Field().String()) },
		"personname": func(fl validator.FieldLevel) bool { return validPersonName(fl.Field().String()) },
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func validDateOfBirth(s string) bool {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return d.Before(nowFunc().UTC())
}

func validPersonName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 2 && n <= 120
}

// RuleMessage returns the user-facing text for an application rule.
func RuleMessage(rule string) (string, bool) {
	switch rule {
	case "aadhaar":
		return "Aadhar number must be 12 digits", true
	case "pan":
		return "Invalid PAN format", true
	case "dob":
		return "must be a valid past date (YYYY-MM-DD)", true
	case "personname":
		return "must be between 2 and 120 characters", true
	default:
		return "", false
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")

	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// Validate checks every field and reports all failures at once.
func (f Fields) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := RuleMessage(fe.Tag()); ok {
		return msg
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "max":
		if fe.Field() == "cibilScore" {
			return "CIBIL score must be between 300 and 900"
		}
		return "is out of range"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
