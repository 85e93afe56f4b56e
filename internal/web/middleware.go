package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lunar-card/internal/auth"
)

const visitIDKey = "visitID"

// LoggingMiddleware logs every request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Handled request")
	}
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic in handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{Error: "internal error"})
			}
		}()
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// VisitMiddleware requires a visit token and stores its visit id in the context.
func VisitMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			respondError(c, auth.ErrInvalidToken)
			return
		}
		claims, err := issuer.Parse(token)
		if err != nil {
			respondError(c, err)
			return
		}
		if claims.Role != auth.RoleVisit || claims.VisitID == "" {
			respondError(c, auth.ErrInvalidToken)
			return
		}
		c.Set(visitIDKey, claims.VisitID)
		c.Next()
	}
}

// AdminMiddleware requires an admin token and marks the request context
// as carrying an administrator.
func AdminMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			respondError(c, auth.ErrInvalidToken)
			return
		}
		claims, err := issuer.Parse(token)
		if err != nil {
			respondError(c, err)
			return
		}
		if claims.Role != auth.RoleAdmin {
			respondError(c, auth.ErrNotAdmin)
			return
		}
		c.Request = c.Request.WithContext(auth.WithAdmin(c.Request.Context()))
		c.Next()
	}
}
