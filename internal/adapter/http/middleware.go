package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
)

const (
	sessionContextKey = "session"
	sessionCookieName = "jwt"
	requestIDHeader   = "X-Request-ID"
	requestIDKey      = "request_id"
)

// sessionClaims is the payload of the session cookie issued by the account
// system.
type sessionClaims struct {
	ID     string        `json:"id"`
	Avatar domain.Avatar `json:"avatar"`
	jwt.RegisteredClaims
}

// SessionMiddleware parses the session cookie into a domain.Session. Auth is
// optional at this layer: a missing or invalid cookie leaves the session nil
// and handlers decide what anonymity means for their route.
func SessionMiddleware(secret string, log *logger.Logger) gin.HandlerFunc {
	authLogger := log.Named("SessionMiddleware")
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(sessionCookieName)
		if err != nil || tokenString == "" || secret == "" {
			c.Next()
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.ID == "" {
			authLogger.Debug("Rejected session cookie", zap.Error(err))
			c.Next()
			return
		}

		c.Set(sessionContextKey, &domain.Session{ID: claims.ID, Avatar: claims.Avatar})
		c.Next()
	}
}

// sessionFromContext returns the viewer's session, or nil when anonymous.
func sessionFromContext(c *gin.Context) *domain.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	session, ok := value.(*domain.Session)
	if !ok {
		return nil
	}
	return session
}

// RequestIDMiddleware attaches a request id, honoring one supplied by the
// gateway in front of us.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggingMiddleware logs every request and records latency and error metrics.
func LoggingMiddleware(log *logger.Logger, mm *metrics.MetricsManager) gin.HandlerFunc {
	requestLogger := log.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		mm.HTTPRequestLatency.WithLabelValues(route, c.Request.Method).Observe(duration.Seconds())
		if status >= 400 {
			mm.HTTPErrorsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		switch {
		case status >= 500:
			requestLogger.Error("Request completed", fields...)
		case status >= 400:
			requestLogger.Warn("Request completed", fields...)
		default:
			requestLogger.Info("Request completed", fields...)
		}
	}
}
