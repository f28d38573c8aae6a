package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

var (
	// PhoneNumberRegex validates phone numbers, optionally in E.164 form
	PhoneNumberRegex = regexp.MustCompile(`^\+?[0-9]{3,15}$`)
)

// ValidatePhoneNumber validates a phone number
func ValidatePhoneNumber(phone string) error {
	if !PhoneNumberRegex.MatchString(phone) {
		return errors.NewValidationError("invalid phone number format").WithDetail("phoneNumber", phone)
	}
	return nil
}

// ParsePositiveInt parses a string that must hold a positive integer
func ParsePositiveInt(value string) (int64, error) {
	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("value must be a valid integer").WithDetail("value", value)
	}
	if num <= 0 {
		return 0, errors.NewValidationError("value must be a positive integer").WithDetail("value", value)
	}
	return num, nil
}

// ValidateRequiredString validates that a string is not empty
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fieldName + " is required")
	}
	return nil
}
