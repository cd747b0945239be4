package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
	bearerPrefix = "Bearer "

	// Context keys set by JWTAuth.
	OperatorIDKey   = "operator_id"
	OperatorNameKey = "operator_name"
	OperatorRoleKey = "operator_role"
)

// OperatorID returns the authenticated operator, or "" before JWTAuth ran.
func OperatorID(c *gin.Context) string {
	return c.GetString(OperatorIDKey)
}

func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			if errors.Is(err, auth.ErrMissingSecret) {
				slog.Error("JWT secret not configured, rejecting request", "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication is not configured"})
				return
			}
			slog.Debug("Rejected operator token", "client_ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OperatorIDKey, claims.UserID)
		c.Set(OperatorNameKey, claims.Username)
		c.Set(OperatorRoleKey, claims.Role)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(OperatorRoleKey)) {
			slog.Warn("Operator lacks required role",
				"operator", c.GetString(OperatorNameKey),
				"role", c.GetString(OperatorRoleKey),
				"path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// APIKeyAuth guards machine endpoints. An empty key disables them.
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "audit API is not configured"})
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			slog.Warn("Invalid API key attempt", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}
