package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phtourism/internal/services"
	"phtourism/internal/shared/testutil"
)

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	health := services.NewHealthService(logger, services.BuildInfo{Version: "v1.2.0"}, nil, nil)
	h := NewHealthHandler(health, logger)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantKey  string
		wantVal  interface{}
	}{
		{name: "health", handler: h.HealthCheck, wantCode: http.StatusOK, wantKey: "status", wantVal: "ok"},
		{name: "readiness without dataset", handler: h.ReadinessCheck, wantCode: http.StatusServiceUnavailable, wantKey: "status", wantVal: "not_ready"},
		{name: "version", handler: h.Version, wantCode: http.StatusOK, wantKey: "version", wantVal: "v1.2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest("GET", "/", nil))

			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantVal, decode(t, rec)[tt.wantKey])
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	scrape := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tourism_views_built_total 3\n"))
	})
	h := NewMetricsHandler(scrape)

	rec := httptest.NewRecorder()
	h.GetMetrics(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "tourism_views_built_total")

	rec = httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
