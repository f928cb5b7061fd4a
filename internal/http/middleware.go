// Package http wires the gin router, middleware, and handlers.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/connvault/connvault/internal/config"
	"github.com/connvault/connvault/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Context keys populated by the auth middleware.
const (
	ctxUserID      = "userID"
	ctxIsSuperuser = "isSuperuser"
)

// requestIDMiddleware tags every request with an id and logs its outcome.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("request completed")
	}
}

// userAuthMiddleware validates session JWTs and loads the caller into
// context. When the auth-enforcement flag is off, requests pass through
// anonymously.
func userAuthMiddleware(flag *authFlag, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !flag.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, strings.TrimSpace(token))
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxIsSuperuser, claims.IsSuperuser)
		c.Next()
	}
}

// superuserRequired gates administrative endpoints.
func superuserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get(ctxIsSuperuser)
		superuser, _ := val.(bool)
		if !exists || !superuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser access required"})
			return
		}
		c.Next()
	}
}
