package validators

import (
	"fmt"
	"strings"
)

// Validator provides comprehensive validation functionality
type Validator struct {
	sanitizer *Sanitizer
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		sanitizer: NewSanitizer(),
	}
}

// ValidationError represents a validation error with field information
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	messages := make([]string, len(ve))
	for i, err := range ve {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// AddError adds a validation error
func (ve *ValidationErrors) AddError(field, message string) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// SanitizeAndValidate sanitizes input then validates it
func (v *Validator) SanitizeAndValidate(input string, validator func(string) error) (string, error) {
	// Sanitize first
	sanitized := v.sanitizer.SanitizeInput(input)

	// Then validate
	if err := validator(sanitized); err != nil {
		return "", err
	}

	return sanitized, nil
}

