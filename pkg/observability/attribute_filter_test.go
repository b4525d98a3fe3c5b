package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/aether/pkg/observability"
)

func filteredSpanAttrs(t *testing.T, logger *slog.Logger, attrs ...attribute.KeyValue) map[string]any {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attrs...)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	return spanAttrMap(spans[0])
}

func TestAttributeFilter_AllowsKnownKeys(t *testing.T) {
	t.Parallel()

	attrs := filteredSpanAttrs(t, nil,
		attribute.String("aether.unit", "a.tsx"),
		attribute.Int("rule.changes", 3),
		attribute.String("http.method", "POST"),
		attribute.String("error.type", "malformed"),
		attribute.Int("worker_index", 2),
	)

	assert.Equal(t, "a.tsx", attrs["aether.unit"])
	assert.Equal(t, int64(3), attrs["rule.changes"])
	assert.Equal(t, "POST", attrs["http.method"])
	assert.Equal(t, "malformed", attrs["error.type"])
	assert.Equal(t, int64(2), attrs["worker_index"])
}

func TestAttributeFilter_BlocksSensitiveAndUnknown(t *testing.T) {
	t.Parallel()

	attrs := filteredSpanAttrs(t, nil,
		attribute.String("user.email", "alice@example.com"),
		attribute.String("email", "bob@example.com"),
		attribute.String("request.body", "{}"),
		attribute.String("aether.payload", `{"all":true}`),
		attribute.String("aether.source", "<div/>"),
		attribute.String("source.text", "const x"),
		attribute.String("random", "x"),
		attribute.String("error.type", "internal"),
	)

	assert.Equal(t, map[string]any{"error.type": "internal"}, attrs)
}

func TestAttributeFilter_WarnsWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	filteredSpanAttrs(t, logger, attribute.String("user.secret", "val"))

	assert.Contains(t, buf.String(), "user.secret")
	assert.Contains(t, buf.String(), "blocked")
}

// spanAttrMap converts a span's attributes into a map for easy assertion.
func spanAttrMap(s tracetest.SpanStub) map[string]any {
	m := make(map[string]any, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}
