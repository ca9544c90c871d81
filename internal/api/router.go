// Package api exposes the sync service over HTTP.
package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP routes to handlers.
func NewRouter(sync *SyncHandler, health *HealthHandler) *mux.Router {
	root := mux.NewRouter()
	root.Use(Recover)
	root.Use(RequestID)

	root.HandleFunc("/api/users/{userId}/sync/{entity}/preview", sync.Preview).Methods("POST")
	root.HandleFunc("/api/users/{userId}/sync/{entity}/resolve", sync.Resolve).Methods("POST")
	root.HandleFunc("/api/users/{userId}/sync/{entity}", sync.Sync).Methods("POST")

	root.HandleFunc("/api/health", health.CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return root
}
