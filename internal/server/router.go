package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawkode-academy/telemetry-sink/internal/handlers"
	"github.com/rawkode-academy/telemetry-sink/internal/middleware"
)

// NewRouter constructs a ServeMux with the ingest API routes registered.
// The telemetry endpoints sit behind auth; health and metrics do not.
func NewRouter(h *handlers.IngestHandler, auth middleware.AuthConfig) http.Handler {
	ingest := http.NewServeMux()
	ingest.HandleFunc("/v1/events", h.HandleEvent)
	ingest.HandleFunc("/v1/metrics", h.HandleMetric)
	ingest.HandleFunc("/v1/logs", h.HandleLog)
	ingest.HandleFunc("/v1/exceptions", h.HandleException)
	ingest.HandleFunc("/v1/traces", h.HandleTrace)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(auth, ingest))

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
