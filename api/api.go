package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// New creates a new mux router with the liveness and metrics routes
func New(m *Metrics) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.Use(m.MetricsMiddleware)
	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.HealthCheckResponse{Alive: true})
}
