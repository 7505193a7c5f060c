package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"weylus/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	router := gin.New()
	router.Use(TracingMiddleware("session-7"))
	router.GET("/api/v1/session/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/session/connect", func(c *gin.Context) {
		_ = c.Error(errors.New("dial refused"))
		c.Status(http.StatusBadGateway)
	})
	return router, rec
}

func spanAttrs(span tracesdk.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	router, rec := newTracedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session/def", nil))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	for _, span := range ended {
		assert.Equal(t, "GET /api/v1/session/:id", span.Name())
		assert.Equal(t, trace.SpanKindServer, span.SpanKind())
		a := spanAttrs(span)
		assert.Equal(t, "session-7", a[tracing.SessionIDKey].AsString())
		assert.Equal(t, int64(http.StatusOK), a["http.status_code"].AsInt64())
		assert.Equal(t, codes.Unset, span.Status().Code)
	}
}

func TestTracingMiddleware_UnmatchedRoute(t *testing.T) {
	router, rec := newTracedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	require.Len(t, rec.Ended(), 1)
	got := rec.Ended()[0]
	assert.Equal(t, "GET unmatched", got.Name())
	assert.Equal(t, int64(http.StatusNotFound), spanAttrs(got)["http.status_code"].AsInt64())
}

func TestTracingMiddleware_RecordsHandlerError(t *testing.T) {
	router, rec := newTracedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/session/connect", nil))

	require.Len(t, rec.Ended(), 1)
	got := rec.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "dial refused", got.Status().Description)
}
