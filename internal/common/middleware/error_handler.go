package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/pkg/errors"
)

// ErrorResponse is the JSON shape of every error the API returns,
// including validation rejections carrying an E11xx/E13xx code.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   *ErrorDetail           `json:"error"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// ErrorDetail carries the coded error itself.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler converts errors attached via the AbortWith helpers (or
// c.Error directly) into an ErrorResponse. Must be mounted for those
// helpers to produce a body at all.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.GetAppError(c.Errors.Last().Err)
		logAppError(c, appErr)

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.Status, ErrorResponse{
			Success: false,
			Error: &ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
			Meta: errorMeta(c),
		})
	}
}

// AbortWithError attaches err and stops the handler chain; ErrorHandler
// writes the response.
func AbortWithError(c *gin.Context, err *errors.AppError) {
	c.Error(err)
	c.Abort()
}

func AbortWithNotFound(c *gin.Context, resource string) {
	AbortWithError(c, errors.NewNotFoundError(resource))
}

func AbortWithUnauthorized(c *gin.Context, message string) {
	AbortWithError(c, errors.NewUnauthorizedError(message))
}

func AbortWithForbidden(c *gin.Context, message string) {
	AbortWithError(c, errors.NewForbiddenError(message))
}

func AbortWithValidation(c *gin.Context, message string) {
	AbortWithError(c, errors.NewValidationError(message))
}

func AbortWithBadRequest(c *gin.Context, message string) {
	AbortWithError(c, errors.NewBadRequestError(message))
}

func AbortWithConflict(c *gin.Context, message string) {
	AbortWithError(c, errors.NewConflictError(message))
}

func AbortWithInternal(c *gin.Context, message string, err error) {
	appErr := errors.NewInternalError(message)
	if err != nil {
		appErr = appErr.WithInternal(err)
	}
	AbortWithError(c, appErr)
}

func logAppError(c *gin.Context, err *errors.AppError) {
	fields := map[string]interface{}{
		"request_id": c.GetString("request_id"),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"code":       err.Code,
		"status":     err.Status,
	}
	if userID := c.GetString("user_id"); userID != "" {
		fields["user_id"] = userID
	}
	if err.InternalErr != nil {
		fields["internal"] = err.InternalErr.Error()
	}

	entry := logging.GetLogger().WithFields(fields)
	if err.Status >= 500 {
		if err.InternalErr != nil {
			entry = entry.WithField("stack", string(debug.Stack()))
		}
		entry.Error(err.Message)
		return
	}
	entry.Warn(err.Message)
}

func errorMeta(c *gin.Context) map[string]interface{} {
	meta := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		meta["request_id"] = requestID
	}
	return meta
}

// RecoveryHandler turns a panic into a coded 500. Kept distinct from
// logging.RecoveryLoggingMiddleware for callers that mount this package
// standalone.
func RecoveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.GetLogger().Error("panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				if c.Writer.Written() {
					return
				}
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Success: false,
					Error: &ErrorDetail{
						Code:    "INTERNAL_ERROR",
						Message: "internal server error",
					},
					Meta: errorMeta(c),
				})
			}
		}()
		c.Next()
	}
}
