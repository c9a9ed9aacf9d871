package providers

import (
	"context"
	"time"

	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services/health"
)

// Adapter is the uniform capability wrapping one concrete remote inference
// provider. Implementations enforce a hard per-call timeout and report every
// call outcome to their own health tracker regardless of how it ended.
type Adapter interface {
	// Name returns the configured provider name
	Name() string

	// Call sends one generation request to the remote provider
	Call(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)

	// QuotaUnit returns the unit this provider's usage is metered in
	QuotaUnit() models.QuotaUnit

	// Health returns the adapter's health tracker
	Health() *health.Tracker
}

// GenerationRequest is a unified text-generation request
type GenerationRequest struct {
	// Prompt is the input text
	Prompt string `json:"prompt"`

	// SystemPrompt optionally steers the model
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerationResponse is a normalized provider response
type GenerationResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// UsageUnits is the billable usage in the provider's quota unit
	// (characters or tokens)
	UsageUnits int64 `json:"usage_units"`

	// ResponseTime is how long the remote call took
	ResponseTime time.Duration `json:"response_time"`

	// Provider is the name of the provider that served the request
	Provider string `json:"provider"`
}
