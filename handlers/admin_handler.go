package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/inference-gateway/app"
	"github.com/upb/inference-gateway/services"
)

// ResetBreakerHandler forces a provider's circuit breaker back to CLOSED
func ResetBreakerHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		if err := deps.Orchestrator.ResetBreaker(name); err != nil {
			if services.IsValidationError(err) {
				respondError(w, http.StatusNotFound, "unknown_provider", err.Error())
				return
			}
			respondDomainError(w, err)
			return
		}

		deps.Logger.Info("breaker reset via admin endpoint", zap.String("provider", name))
		respondJSON(w, http.StatusOK, SuccessResponse{Data: map[string]string{
			"provider": name,
			"state":    "closed",
		}})
	}
}

// ResetQuotaHandler deletes today's usage for one provider (?provider=name)
// or for all providers when no provider is given
func ResetQuotaHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.URL.Query().Get("provider")

		rows, err := deps.Quota.ResetDailyUsage(r.Context(), provider)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, SuccessResponse{Data: map[string]interface{}{
			"provider":     provider,
			"rows_deleted": rows,
		}})
	}
}
