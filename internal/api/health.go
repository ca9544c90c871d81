package api

import (
	"net/http"
	"time"

	"github.com/bondcrm/notionsync/internal/api/respond"
)

// HealthHandler serves GET /api/health from a bound health source.
type HealthHandler struct {
	isHealthy  func() bool
	components func() map[string]bool
}

// NewHealthHandler reports unhealthy until BindServiceHealth is called.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{isHealthy: func() bool { return false }}
}

// BindServiceHealth injects the service-level health source. components may
// be nil.
func (h *HealthHandler) BindServiceHealth(isHealthy func() bool, components func() map[string]bool) {
	h.isHealthy = isHealthy
	h.components = components
}

// CheckHealth always answers 200; the body reports healthy or unhealthy.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.isHealthy() {
		status = "healthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.components != nil {
		response["components"] = h.components()
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
