package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/contexts", h.ListContexts).Methods(http.MethodGet)
	api.HandleFunc("/contexts", h.RegisterContext).Methods(http.MethodPost)
	api.HandleFunc("/contexts/{symbol}", h.GetContext).Methods(http.MethodGet)
	api.HandleFunc("/contexts/{symbol}", h.DeleteContext).Methods(http.MethodDelete)
	api.HandleFunc("/contexts/{symbol}/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/revisions/{id}", h.GetRevision).Methods(http.MethodGet)
	api.HandleFunc("/revisions/{id}", h.DeleteRevision).Methods(http.MethodDelete)
	api.HandleFunc("/judge", h.Judge).Methods(http.MethodPost)

	return r
}

// NewHTTPHandler returns the router instrumented with otelhttp.
func NewHTTPHandler(h *Handler) http.Handler {
	return otelhttp.NewHandler(SetupRoutes(h), "trade-app")
}
