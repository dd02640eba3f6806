package dto

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("strong_password", validateStrongPassword)
	validate.RegisterValidation("vn_mobile", validateVietnamMobile)
}

func GetValidator() *validator.Validate {
	return validate
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)+$`)

	// Vietnamese mobile: country-code form (+84 followed by 9 digits) or
	// trunk-prefix form (0 followed by 9 digits).
	vnMobileRegex = regexp.MustCompile(`^(\+84|0)\d{9}$`)
)

// IsValidEmail is a syntactic check only: local@domain with a dot in the
// domain part.
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

func IsValidVietnamMobile(s string) bool {
	return vnMobileRegex.MatchString(s)
}

// IsStrongPassword requires length >= 8 with at least one uppercase letter,
// one lowercase letter and one digit.
func IsStrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

func IsNonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return IsStrongPassword(fl.Field().String())
}

func validateVietnamMobile(fl validator.FieldLevel) bool {
	return IsValidVietnamMobile(fl.Field().String())
}

func FormatValidationErrors(err error) map[string]string {
	fields := map[string]string{}

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			var message string

			switch fieldError.Tag() {
			case "required":
				message = fieldError.Field() + " is required"
			case "email":
				message = "Invalid email format"
			case "vn_mobile":
				message = "Invalid mobile number format"
			case "min":
				message = fieldError.Field() + " must be at least " + fieldError.Param() + " characters"
			case "max":
				message = fieldError.Field() + " must be at most " + fieldError.Param() + " characters"
			case "len":
				message = fieldError.Field() + " must be exactly " + fieldError.Param() + " characters"
			case "numeric":
				message = fieldError.Field() + " must contain only numbers"
			case "strong_password":
				message = "Password must contain at least 8 characters with uppercase, lowercase and number"
			case "oneof":
				message = fieldError.Field() + " must be one of: " + fieldError.Param()
			default:
				message = fieldError.Field() + " is invalid"
			}

			fields[fieldError.Field()] = message
		}
	}

	return fields
}

type Validator interface {
	Validate() error
}
