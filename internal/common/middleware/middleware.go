package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/tobangado69/vrpsolver/pkg/errors"
)

// Claims represents the JWT claims issued for a solve-submission API caller.
// There is no per-request database lookup here: callers are service accounts
// or API keys, not interactively-authenticated users, so the token itself is
// the source of truth once signature and expiry check out.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"subject"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired validates a bearer JWT and populates the request context
// with the caller's identity, tenant, and role.
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithUnauthorized(c, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			AbortWithUnauthorized(c, "Authorization header must start with 'Bearer '")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(jwtSecret), nil
		})
		if err != nil {
			AbortWithUnauthorized(c, "Token validation failed")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			AbortWithUnauthorized(c, "Token claims validation failed")
			return
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			AbortWithUnauthorized(c, "Token expired")
			return
		}

		c.Set("tenant_id", claims.TenantID)
		c.Set("user_id", claims.Subject)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// RoleRequired rejects callers whose role is not in requiredRoles. Mounted
// on the /api/v1/admin group (rate-limit admin routes).
func RoleRequired(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			AbortWithForbidden(c, "Caller role could not be determined")
			return
		}

		role, _ := userRole.(string)
		for _, required := range requiredRoles {
			if role == required {
				c.Next()
				return
			}
		}

		AbortWithForbidden(c, "This action requires one of the following roles: "+strings.Join(requiredRoles, ", "))
	}
}

// SecurityHeaders adds the standard browser hardening headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		c.Next()
	}
}

// InstanceRateLimit caps requests handled by this process, all callers
// combined. It backstops the Redis-based per-route limiter, which fails
// open when Redis is unreachable: even then, one instance cannot be
// flooded with solve submissions.
func InstanceRateLimit(requestsPerMinute int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			AbortWithError(c, errors.NewTooManyRequestsError("instance request limit exceeded"))
			return
		}
		c.Next()
	}
}
