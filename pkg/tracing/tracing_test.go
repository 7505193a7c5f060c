package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs an in-memory provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrs(span tracesdk.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "weylus-client", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	var nilProvider *TracerProvider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestTraceHandshake(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := TraceHandshake(context.Background(), "ws://localhost:1701/ws", "session-1", 2)
	RecordError(ctx, errors.New("dial refused"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "session.handshake", got.Name())
	assert.Equal(t, trace.SpanKindClient, got.SpanKind())
	assert.Equal(t, codes.Error, got.Status().Code)

	a := attrs(got)
	assert.Equal(t, "ws://localhost:1701/ws", a[ServerURLKey].AsString())
	assert.Equal(t, "session-1", a[SessionIDKey].AsString())
	assert.Equal(t, int64(2), a[AttemptKey].AsInt64())
}

func TestTraceQualityChange(t *testing.T) {
	rec := recordSpans(t)

	_, span := TraceQualityChange(context.Background(), "MEDIUM", 10_000_000)
	span.End()

	require.Len(t, rec.Ended(), 1)
	a := attrs(rec.Ended()[0])
	assert.Equal(t, "MEDIUM", a[QualityKey].AsString())
	assert.Equal(t, int64(10_000_000), a[BitrateKey].AsInt64())
}

func TestTraceHTTPRequest(t *testing.T) {
	rec := recordSpans(t)

	_, span := TraceHTTPRequest(context.Background(), "POST", "/api/v1/session/connect")
	span.End()

	require.Len(t, rec.Ended(), 1)
	got := rec.Ended()[0]
	assert.Equal(t, "POST /api/v1/session/connect", got.Name())
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())
}

func TestRecordError_NilIsIgnored(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "noop")
	RecordError(ctx, nil)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Unset, rec.Ended()[0].Status().Code)
}
