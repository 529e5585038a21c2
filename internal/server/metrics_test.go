package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxquery/internal/instrumentation"
)

func newTestProvider(t *testing.T, exporter string) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "inboxquery-test",
		ServiceVersion:  "1.0.0",
		Enabled:         exporter != "",
		MetricsExporter: exporter,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name     string
		config   func(t *testing.T) MetricsServerConfig
		wantAddr string
		wantErr  error
	}{
		{
			name: "explicit addr",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Addr: ":9191", Provider: newTestProvider(t, instrumentation.ExporterPrometheus)}
			},
			wantAddr: ":9191",
		},
		{
			name: "default addr",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Provider: newTestProvider(t, instrumentation.ExporterPrometheus)}
			},
			wantAddr: DefaultMetricsAddr,
		},
		{
			name:    "nil provider",
			config:  func(*testing.T) MetricsServerConfig { return MetricsServerConfig{} },
			wantErr: errNoProvider,
		},
		{
			name: "disabled provider",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Provider: newTestProvider(t, "")}
			},
			wantErr: errNoPrometheus,
		},
		{
			name: "stdout exporter",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Provider: newTestProvider(t, instrumentation.ExporterStdout)}
			},
			wantErr: errNoPrometheus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewMetricsServer(tt.config(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, srv.Addr())
		})
	}
}

func TestMetricsServer_Routes(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{
		Provider: newTestProvider(t, instrumentation.ExporterPrometheus),
		Health:   NewHealthChecker(nil),
	})
	require.NoError(t, err)

	for path, want := range map[string]int{
		"/metrics": http.StatusOK,
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/mcp":     http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestMetricsServer_ShutdownWithoutStart(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{Provider: newTestProvider(t, instrumentation.ExporterPrometheus)})
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
