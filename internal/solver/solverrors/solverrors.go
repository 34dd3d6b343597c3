// Package solverrors adapts pkg/errors.AppError to the solve-specific
// error classes: a problem that is infeasible before the first
// iteration (malformed input) versus a search that ran to termination
// but left jobs unassigned (not an error at all, a result).
package solverrors

import (
	"errors"

	apperrors "github.com/tobangado69/vrpsolver/pkg/errors"
)

// NewInvalidProblemError reports a problem graph that failed validation
// before any solve attempt.
func NewInvalidProblemError(message string) *apperrors.AppError {
	return apperrors.NewValidationError(message)
}

// NewSolveCancelledError reports a solve run that ended because its
// context was cancelled or its deadline elapsed, distinct from a
// clean termination.
func NewSolveCancelledError(message string) *apperrors.AppError {
	if message == "" {
		message = "solve cancelled"
	}
	return apperrors.WrapWithCode(errors.New(message), "SOLVE_CANCELLED", message, 499)
}

// NewSolveNotFoundError reports an unknown solve-run id.
func NewSolveNotFoundError(runID string) *apperrors.AppError {
	return apperrors.NewNotFoundError("solve run " + runID)
}

// NewMatrixProviderError reports a routing-matrix lookup failure.
func NewMatrixProviderError(err error) *apperrors.AppError {
	return apperrors.WrapWithCode(err, "MATRIX_PROVIDER_ERROR", "routing matrix lookup failed", 502)
}
