package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/aether/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	ctx, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()
	assert.NotNil(t, ctx)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_LoggerWritesToConfiguredOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogOutput = &buf
	cfg.Environment = "test"
	cfg.Mode = observability.ModeServe

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.InfoContext(context.Background(), "init test", "unit", "a.tsx")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "init test", record["msg"])
	assert.Equal(t, "aether", record["service"])
	assert.Equal(t, "serve", record["mode"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "a.tsx", record["unit"])
}

func TestInit_PrometheusExposesRecordedMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true

	providers, err := observability.Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, providers.MetricsHandler)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	red, err := observability.NewREDMetrics(providers.Meter)
	require.NoError(t, err)

	red.RecordTransform(context.Background(), "cli", observability.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aether_transforms_total")
	assert.Contains(t, rec.Body.String(), "target_info")
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", nil},
		{"single", "key=value", map[string]string{"key": "value"}},
		{"multiple", "k1=v1,k2=v2", map[string]string{"k1": "v1", "k2": "v2"}},
		{"spaces", " k1 = v1 , k2 = v2 ", map[string]string{"k1": "v1", "k2": "v2"}},
		{"no_equals", "invalid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.input))
		})
	}
}

func TestBuildResource_IncludesAppMode(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeServe
	cfg.ServiceVersion = "1.2.3"

	res, err := observability.BuildResource(cfg)
	require.NoError(t, err)

	found := map[string]string{}

	for _, attr := range res.Attributes() {
		found[string(attr.Key)] = attr.Value.Emit()
	}

	assert.Equal(t, "serve", found["app.mode"])
	assert.Equal(t, "aether", found["service.name"])
	assert.Equal(t, "1.2.3", found["service.version"])
}

func TestSampler_FromEnvironment(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		want    bool
	}{
		{"always_on", "", true},
		{"always_off", "", false},
		{"traceidratio", "1.0", true},
		{"traceidratio", "0", false},
		{"parentbased_always_on", "", true},
		{"parentbased_always_off", "", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.sampler+"/"+tt.arg, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tt.sampler)
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)

			assert.Equal(t, tt.want, observability.SamplesRootSpan(observability.DefaultConfig()))
		})
	}
}

func TestSampler_DebugTraceOverridesEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER", "always_off")

	cfg := observability.DefaultConfig()
	cfg.DebugTrace = true

	assert.True(t, observability.SamplesRootSpan(cfg))
}

func TestSampler_DefaultSamples(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	assert.True(t, observability.SamplesRootSpan(cfg))

	cfg.SampleRatio = 1.0
	assert.True(t, observability.SamplesRootSpan(cfg))
}
