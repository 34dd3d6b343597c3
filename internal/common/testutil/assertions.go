package testutil

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertValidUUID checks if a string is a valid UUID
func AssertValidUUID(t *testing.T, id string, msgAndArgs ...interface{}) bool {
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	return assert.Regexp(t, uuidRegex, id, msgAndArgs...)
}

// AssertValidEmail checks if a string is a valid email
func AssertValidEmail(t *testing.T, email string, msgAndArgs ...interface{}) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return assert.Regexp(t, emailRegex, email, msgAndArgs...)
}
