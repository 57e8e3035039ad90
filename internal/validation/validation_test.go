package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+211912345678", true},
		{"+211000000000", true},
		{"+21191234567", false},
		{"+2119123456789", false},
		{"211912345678", false},
		{"+254912345678", false},
		{"+211 912345678", false},
		{"+21191234567a", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPhone(tt.phone), tt.phone)
	}
}

type registerInput struct {
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required,ssphone"`
	Password    string `json:"password" binding:"required,min=6"`
	Gender      string `json:"gender" binding:"required,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterRules(v))
	return v
}

func TestFormatValidationErrorUsesWireNames(t *testing.T) {
	v := newValidator(t)

	err := v.Struct(registerInput{
		Email:       "not-an-email",
		Phone:       "+211123",
		Password:    "abc",
		Gender:      "unknown",
		DateOfBirth: "01/02/2000",
	})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Valid email required")
	assert.Contains(t, msg, "Valid South Sudan phone required (+211XXXXXXXXX)")
	assert.Contains(t, msg, "Password must be at least 6 characters")
	assert.Contains(t, msg, "Valid gender required")
	assert.Contains(t, msg, "Valid date required")
}

func TestValidInputPasses(t *testing.T) {
	v := newValidator(t)

	err := v.Struct(registerInput{
		Email:       "member@ataryouth.org",
		Phone:       "+211912345678",
		Password:    "secret123",
		Gender:      "female",
		DateOfBirth: "2000-02-01",
	})
	assert.NoError(t, err)
}

func TestFormatValidationErrorFallback(t *testing.T) {
	assert.Equal(t, "Invalid request body", FormatValidationError(errors.New("unexpected EOF")))
}
