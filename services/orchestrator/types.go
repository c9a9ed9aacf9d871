package orchestrator

import (
	"time"

	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services/breaker"
	"github.com/upb/inference-gateway/services/health"
	"github.com/upb/inference-gateway/services/respcache"
)

// Request is one generation request entering the fallback chain
type Request struct {
	// Prompt is the input text
	Prompt string `json:"prompt" validate:"required"`

	// SystemPrompt optionally steers the model
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int `json:"max_tokens,omitempty" validate:"gte=0"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`

	// CacheKey enables response memoization when non-empty. Callers derive
	// it from the prompt and parameters (see respcache.Key).
	CacheKey string `json:"-"`
}

// Response is the single result returned per request. A failed fallback chain
// is reported here as Success=false rather than as an error: exhaustion is an
// expected terminal outcome, not an exceptional one.
type Response struct {
	// Success reports whether any provider (or the cache) served the request
	Success bool `json:"success"`

	// Content is the generated text (empty on failure)
	Content string `json:"content,omitempty"`

	// Provider names the provider that served the request; metadata only
	Provider string `json:"provider,omitempty"`

	// Cached is true when the response was served from the cache
	Cached bool `json:"cached"`

	// UsageUnits is the billable usage recorded for this request
	UsageUnits int64 `json:"usage_units,omitempty"`

	// ResponseTime is the remote call duration (zero for cache hits)
	ResponseTime time.Duration `json:"response_time,omitempty"`

	// Error carries the terminal diagnostic when Success is false
	Error string `json:"error,omitempty"`

	// ProvidersTried is how many providers were attempted before failure
	ProvidersTried int `json:"providers_tried,omitempty"`
}

// ProviderStatus is the full observable state of one registered provider
type ProviderStatus struct {
	Name     string              `json:"name"`
	Type     models.ProviderType `json:"type"`
	Model    string              `json:"model"`
	Priority int                 `json:"priority"`
	Enabled  bool                `json:"enabled"`

	Calls    uint64 `json:"calls"`
	Failures uint64 `json:"failures"`

	Breaker breaker.Snapshot   `json:"breaker"`
	Health  health.Snapshot    `json:"health"`
	Usage   *models.UsageStats `json:"usage,omitempty"`
}

// Stats holds the process-lifetime orchestrator counters
type Stats struct {
	TotalRequests uint64 `json:"total_requests"`
	CacheHits     uint64 `json:"cache_hits"`
	CacheMisses   uint64 `json:"cache_misses"`

	ProviderCalls    map[string]uint64 `json:"provider_calls"`
	ProviderFailures map[string]uint64 `json:"provider_failures"`

	Cache respcache.Stats `json:"cache"`
}

// cacheEnvelope is the serialized form of a cached response
type cacheEnvelope struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
}
