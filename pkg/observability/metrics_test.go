package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/aether/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.REDMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return red, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, found *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, found)

	sum, ok := found.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, point := range sum.DataPoints {
		total += point.Value
	}

	return total
}

func TestREDMetrics_RecordTransform(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)
	ctx := context.Background()

	red.RecordTransform(ctx, "cli", observability.StatusOK, 2*time.Millisecond)
	red.RecordTransform(ctx, "cli", observability.StatusError, time.Millisecond)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, observability.MetricTransformsTotal)))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, observability.MetricErrorsTotal)))
	assert.NotNil(t, findMetric(rm, observability.MetricTransformDuration))
}

func TestREDMetrics_RulesAndBytes(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)
	ctx := context.Background()

	red.RecordRules(ctx, map[string]int{"oid": 3, "strip-comments": 1})
	red.RecordSourceBytes(ctx, "serve", 128)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(4), sumOf(t, findMetric(rm, observability.MetricRulesApplied)))
	assert.Equal(t, int64(128), sumOf(t, findMetric(rm, observability.MetricSourceBytes)))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	done := red.TrackInflight(context.Background(), "cli")
	assert.Equal(t, int64(1), sumOf(t, findMetric(collectMetrics(t, reader), observability.MetricInflightTransforms)))

	done()
	assert.Equal(t, int64(0), sumOf(t, findMetric(collectMetrics(t, reader), observability.MetricInflightTransforms)))
}
