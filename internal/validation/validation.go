package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const PhoneRule = "ssphone"

var phonePattern = regexp.MustCompile(`^\+211\d{9}$`)

// ValidPhone reports whether phone is a South Sudan number in +211XXXXXXXXX form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// RegisterRules installs the custom rules and reports fields by their wire
// names (json, then form tag) instead of Go field names.
func RegisterRules(v *validator.Validate) error {
	v.RegisterTagNameFunc(wireName)
	if err := v.RegisterValidation(PhoneRule, func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register %s: %w", PhoneRule, err)
	}
	return nil
}

func wireName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

var messages = map[string]string{
	"email.required":           "Email required",
	"email.email":              "Valid email required",
	"phone.required":           "Phone required",
	"phone." + PhoneRule:       "Valid South Sudan phone required (+211XXXXXXXXX)",
	"password.required":        "Password required",
	"password.min":             "Password must be at least 6 characters",
	"password.max":             "Password must be at most 72 characters",
	"full_name.required":       "Full name required",
	"gender.required":          "Valid gender required",
	"gender.oneof":             "Valid gender required",
	"date_of_birth.required":   "Valid date required",
	"date_of_birth.datetime":   "Valid date required",
	"county.required":          "County required",
	"payam.required":           "Payam required",
	"currentPassword.required": "Current password required",
	"newPassword.required":     "New password must be at least 6 characters",
	"newPassword.min":          "New password must be at least 6 characters",
	"newPassword.max":          "New password must be at most 72 characters",
	"status.required":          "Invalid status",
	"status.oneof":             "Invalid status",
}

// FormatValidationError turns binding errors into a single readable message.
func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		parts := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			parts = append(parts, fieldMessage(fe))
		}
		return strings.Join(parts, "; ")
	}
	return "Invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
