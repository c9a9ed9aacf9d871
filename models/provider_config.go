package models

import "time"

// ProviderType identifies the adapter family for a provider
type ProviderType string

const (
	ProviderTypeGemini ProviderType = "gemini"
	ProviderTypeOpenAI ProviderType = "openai"
)

// QuotaUnit is the unit a provider's daily quota is metered in
type QuotaUnit string

const (
	QuotaUnitCharacters QuotaUnit = "characters"
	QuotaUnitTokens     QuotaUnit = "tokens"
)

// ProviderConfig describes one registered inference provider.
// Built once at startup from configuration and immutable thereafter.
type ProviderConfig struct {
	// Name uniquely identifies the provider (e.g., "gemini-flash", "openai-mini")
	Name string `json:"name" validate:"required"`

	// Type selects the adapter family
	Type ProviderType `json:"type" validate:"required,oneof=gemini openai"`

	// APIKey is the credential used by the adapter
	APIKey string `json:"-" validate:"required"`

	// BaseURL overrides the default endpoint when set
	BaseURL string `json:"base_url,omitempty"`

	// Model is the remote model identifier
	Model string `json:"model" validate:"required"`

	// Priority orders the fallback chain; lower is preferred.
	// The total order must be stable for the process lifetime.
	Priority int `json:"priority" validate:"gte=0"`

	// DailyQuota is the daily usage budget in the provider's quota unit.
	// Zero means no quota is enforced.
	DailyQuota int64 `json:"daily_quota" validate:"gte=0"`

	// Timeout bounds each remote call
	Timeout time.Duration `json:"timeout"`

	// Enabled providers participate in the fallback chain
	Enabled bool `json:"enabled"`
}

// QuotaUnit returns the unit the provider's usage is metered in
func (c *ProviderConfig) QuotaUnit() QuotaUnit {
	if c.Type == ProviderTypeOpenAI {
		return QuotaUnitTokens
	}
	return QuotaUnitCharacters
}

// HasQuota reports whether a daily quota is configured
func (c *ProviderConfig) HasQuota() bool {
	return c.DailyQuota > 0
}
