package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/metrics"
)

const (
	// ContextKeyConnections is the context key for the live connection snapshot
	// taken while authenticating the request.
	ContextKeyConnections = "connections"
)

// ConnectedTokenAuth admits requests whose Authorization header carries the
// token of a currently connected client.
func ConnectedTokenAuth(coord *core.Coordinator, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			logger.Debug().Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			return
		}

		conns, err := coord.Snapshot(c.Request.Context())
		if err != nil {
			logger.Error().Err(err).Msg("snapshot live connections")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service unavailable"})
			return
		}

		if !core.IsConnectedToken(conns, token, auth.TokensEqual) {
			logger.Debug().Msg("token not held by a connected client")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "not connected"})
			return
		}

		c.Set(ContextKeyConnections, conns)
		c.Next()
	}
}

// CORSMiddleware allows browser clients on any origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Max-Age", "300")
		c.Next()
	}
}

// MetricsMiddleware records request counts and latency.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
