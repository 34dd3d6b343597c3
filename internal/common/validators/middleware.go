package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tobangado69/vrpsolver/internal/common/middleware"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	sanitizer *Sanitizer
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		sanitizer: NewSanitizer(),
	}
}

// SanitizeQueryParams sanitizes all query parameters
func (vm *ValidationMiddleware) SanitizeQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get all query parameters
		queryParams := c.Request.URL.Query()

		// Sanitize each parameter
		for key, values := range queryParams {
			for i, value := range values {
				queryParams[key][i] = vm.sanitizer.SanitizeInput(value)
			}
		}

		// Update request
		c.Request.URL.RawQuery = queryParams.Encode()

		c.Next()
	}
}

// ValidateRequestSize limits request body size
func ValidateRequestSize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// ValidateContentType validates Content-Type header
func ValidateContentType(allowedTypes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip validation for GET requests
		if c.Request.Method == "GET" || c.Request.Method == "DELETE" {
			c.Next()
			return
		}

		contentType := c.GetHeader("Content-Type")

		for _, allowed := range allowedTypes {
			if strings.Contains(contentType, allowed) {
				c.Next()
				return
			}
		}

		middleware.AbortWithBadRequest(c, fmt.Sprintf("Invalid Content-Type: must be one of %v", allowedTypes))
	}
}

// ValidatePaginationParams validates common pagination parameters, used by
// the problem listing endpoint (GET /api/v1/problems).
func ValidatePaginationParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get limit
		limitStr := c.DefaultQuery("limit", "20")
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 1000 {
			middleware.AbortWithBadRequest(c, "Invalid limit: must be between 1 and 1000")
			return
		}

		// Get offset
		offsetStr := c.DefaultQuery("offset", "0")
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			middleware.AbortWithBadRequest(c, "Invalid offset: must be non-negative")
			return
		}

		// Store validated values
		c.Set("validated_limit", limit)
		c.Set("validated_offset", offset)

		c.Next()
	}
}
