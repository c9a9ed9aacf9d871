package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/inference-gateway/app"
	"github.com/upb/inference-gateway/services/orchestrator"
	"github.com/upb/inference-gateway/services/respcache"
)

var validate = validator.New()

// GenerateRequest is the request body for POST /api/v1/generate
type GenerateRequest struct {
	Prompt       string  `json:"prompt" validate:"required"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty" validate:"gte=0"`
	Temperature  float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`

	// UseCache enables response memoization for this request
	UseCache bool `json:"use_cache,omitempty"`
}

// GenerateResponse is the response body for POST /api/v1/generate
type GenerateResponse struct {
	RequestID    string `json:"request_id"`
	Content      string `json:"content"`
	Provider     string `json:"provider"`
	Cached       bool   `json:"cached"`
	UsageUnits   int64  `json:"usage_units,omitempty"`
	ResponseTime string `json:"response_time,omitempty"`
}

// GenerateHandler serves generation requests through the fallback chain
func GenerateHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
			return
		}
		if err := validate.Struct(&body); err != nil {
			respondError(w, http.StatusBadRequest, "validation", err.Error())
			return
		}

		requestID := uuid.NewString()

		req := &orchestrator.Request{
			Prompt:       body.Prompt,
			SystemPrompt: body.SystemPrompt,
			MaxTokens:    body.MaxTokens,
			Temperature:  body.Temperature,
		}
		if body.UseCache {
			req.CacheKey = respcache.Key(
				body.Prompt,
				body.SystemPrompt,
				fmt.Sprintf("%d", body.MaxTokens),
				fmt.Sprintf("%g", body.Temperature),
			)
		}

		resp, err := deps.Orchestrator.Generate(r.Context(), req)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		if !resp.Success {
			deps.Logger.Warn("generation failed",
				zap.String("request_id", requestID),
				zap.Int("providers_tried", resp.ProvidersTried))
			respondJSON(w, http.StatusBadGateway, ErrorResponse{
				Error:   "all_providers_exhausted",
				Message: resp.Error,
				Details: map[string]interface{}{
					"request_id":      requestID,
					"providers_tried": resp.ProvidersTried,
				},
			})
			return
		}

		respondJSON(w, http.StatusOK, SuccessResponse{Data: GenerateResponse{
			RequestID:    requestID,
			Content:      resp.Content,
			Provider:     resp.Provider,
			Cached:       resp.Cached,
			UsageUnits:   resp.UsageUnits,
			ResponseTime: resp.ResponseTime.String(),
		}})
	}
}
