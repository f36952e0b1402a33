package middleware

import (
	"time"

	"finsite/pkg/logger"
	"finsite/pkg/tracing"
	"finsite/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	// RequestIDKey is the gin context key for the request id
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestObserver receives one call per served request
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RequestIDMiddleware reuses a sane inbound X-Request-ID or mints one, and
// puts it on the request context for the context logger.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := utils.SanitizeString(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = utils.GenerateRequestID()
		}

		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)

		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLoggingMiddleware writes one http_request line per request and
// feeds the request metrics.
func RequestLoggingMiddleware(log *logger.ContextLogger, observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		ctx := c.Request.Context()
		if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
			ctx = logger.WithTraceID(ctx, traceID)
		}
		log.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), elapsed.Milliseconds())

		if observer != nil {
			observer.ObserveRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), elapsed)
		}
	}
}

// routeLabel keeps metric cardinality bounded by using the matched pattern
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
