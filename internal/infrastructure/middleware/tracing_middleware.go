package middleware

import (
	"net/http"

	"weylus/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const unmatchedRoute = "unmatched"

// TracingMiddleware opens one server span per control API request, named by
// the matched route template so that ids in paths do not split span names.
func TracingMiddleware(sessionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()
		span.SetAttributes(tracing.SessionIDKey.String(sessionID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if id := c.Writer.Header().Get(RequestIDHeader); id != "" {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
		if err := c.Errors.Last(); err != nil {
			tracing.RecordError(ctx, err.Err)
		} else if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
