package handlers

import (
	"net/http"

	"github.com/upb/inference-gateway/app"
)

// ProvidersStatusHandler returns the observable state of every registered
// provider: breaker, health, counters, and today's quota usage
func ProvidersStatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, SuccessResponse{
			Data: deps.Orchestrator.Status(r.Context()),
		})
	}
}

// StatsHandler returns the process-lifetime orchestrator counters
func StatsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, SuccessResponse{
			Data: deps.Orchestrator.Stats(),
		})
	}
}
