package solverrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInvalidProblemError(t *testing.T) {
	err := NewInvalidProblemError("missing depot location")
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "missing depot location", err.Message)
}

func TestNewSolveCancelledErrorDefaultsMessage(t *testing.T) {
	err := NewSolveCancelledError("")
	assert.Equal(t, "SOLVE_CANCELLED", err.Code)
	assert.Equal(t, 499, err.Status)
	assert.Equal(t, "solve cancelled", err.Message)
}

func TestNewSolveNotFoundError(t *testing.T) {
	err := NewSolveNotFoundError("run-123")
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "run-123")
}

func TestNewMatrixProviderErrorWrapsInternal(t *testing.T) {
	inner := errors.New("osrm timeout")
	err := NewMatrixProviderError(inner)
	assert.Equal(t, "MATRIX_PROVIDER_ERROR", err.Code)
	assert.Equal(t, 502, err.Status)
	assert.ErrorIs(t, err.Unwrap(), inner)
}
