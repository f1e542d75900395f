package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HubStats reports live-connection counters
type HubStats interface {
	GetHubMetrics() map[string]interface{}
}

// MetricsHandler exposes the Prometheus scrape endpoint and hub counters
type MetricsHandler struct {
	prometheus http.Handler
	hub        HubStats
}

// NewMetricsHandler creates a new metrics handler. prometheus is nil when
// metrics export is disabled.
func NewMetricsHandler(prometheus http.Handler, hub HubStats) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, hub: hub}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Prometheus)
	r.Get("/websocket", h.WebSocket)
	return r
}

// Prometheus handles GET /metrics
func (h *MetricsHandler) Prometheus(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// WebSocket handles GET /metrics/websocket
func (h *MetricsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		render.JSON(w, r, map[string]interface{}{"active_clients": 0})
		return
	}
	render.JSON(w, r, h.hub.GetHubMetrics())
}
