package middleware

import (
	"github.com/gin-gonic/gin"
)

// APIVersionConfig drives the version headers stamped on every response.
type APIVersionConfig struct {
	Version    string
	Deprecated bool
}

func DefaultAPIVersionConfig() *APIVersionConfig {
	return &APIVersionConfig{Version: "1.0.0"}
}

// APIVersionMiddleware stamps service and version headers on every
// response so clients can pin against the solve API contract.
func APIVersionMiddleware(config *APIVersionConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultAPIVersionConfig()
	}
	return func(c *gin.Context) {
		c.Header("X-API-Version", config.Version)
		c.Header("X-Service-Name", "vrpsolver")
		if config.Deprecated {
			c.Header("X-API-Deprecated", "true")
		}
		c.Next()
	}
}
