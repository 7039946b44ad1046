package http

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	scrape http.Handler
}

// NewMetricsHandler wraps the exporter's handler. Without one, /metrics
// serves the default registry.
func NewMetricsHandler(scrape http.Handler) *MetricsHandler {
	if scrape == nil {
		scrape = promhttp.Handler()
	}
	return &MetricsHandler{scrape: scrape}
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.scrape.ServeHTTP(w, r)
}

// GetHealth handles GET /healthz, a dependency-free probe for load balancers.
func (h *MetricsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}
