package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyviewcafe/atlas/internal/service"
	"github.com/skyviewcafe/atlas/internal/stats"
)

// NewRouter creates a new HTTP router
func NewRouter(service service.ServiceInterface, statsCollector *stats.Collector) *mux.Router {
	handler := NewHandler(service)
	statsHandler := NewStatsHandler(statsCollector)

	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Search endpoint; the trailing-slash form is what older clients use
	router.HandleFunc("/atlas", handler.Search).Methods("GET")
	router.HandleFunc("/atlas/", handler.Search).Methods("GET")

	// Operational endpoints
	router.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
