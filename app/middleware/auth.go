package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"imgtutu/pkg/config"
	"imgtutu/pkg/logger"
)

const (
	// ContextUserID gin context key for the authenticated user id
	ContextUserID = "user_id"
	// ContextInternal gin context key marking trusted service-to-service calls
	ContextInternal = "internal_scope"
)

// Auth authenticates requests with either a user JWT or the internal
// service token. Internal callers get cross-user scope; the acting user
// comes from the X-User-Id header when they need one.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		internalToken := config.GlobalConfig.Auth.InternalToken
		if internalToken != "" && token == internalToken {
			c.Set(ContextInternal, true)
			if uid := c.GetHeader("X-User-Id"); uid != "" {
				c.Set(ContextUserID, uid)
			}
			c.Next()
			return
		}

		userID, err := parseUserToken(token)
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "rejected token: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// parseUserToken validates an HS256 JWT and returns its subject.
func parseUserToken(token string) (string, error) {
	secret := config.GlobalConfig.Auth.JWTSecret
	if secret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// UserID returns the authenticated user id from the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// IsInternal reports whether the request carries the internal service token.
func IsInternal(c *gin.Context) bool {
	return c.GetBool(ContextInternal)
}

// CronAuth guards the cron trigger endpoint with a shared query key.
func CronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := config.GlobalConfig.Cron.Key
		if expected == "" {
			logger.WarnCtx(c.Request.Context(), "cron key not configured, rejecting trigger")
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		if c.Query("key") != expected {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
