package models

import "time"

// UsageTier classifies how much of a provider's daily quota remains
type UsageTier string

const (
	// TierAvailable means more than 20% of the quota remains
	TierAvailable UsageTier = "available"
	// TierWarning means 20% or less remains
	TierWarning UsageTier = "warning"
	// TierCritical means 10% or less remains
	TierCritical UsageTier = "critical"
	// TierDisabled means the quota is fully spent
	TierDisabled UsageTier = "disabled"
)

// UsageRecord is one provider's usage ledger for a single calendar day.
// Unique per (provider, date); counts are non-negative and only grow within
// a day.
type UsageRecord struct {
	Provider       string    `json:"provider"`
	Date           time.Time `json:"date"`
	RequestCount   int64     `json:"request_count"`
	CharacterCount int64     `json:"character_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UsageStats is the derived view of a provider's daily usage
type UsageStats struct {
	Provider       string    `json:"provider"`
	Date           string    `json:"date"`
	RequestCount   int64     `json:"request_count"`
	CharacterCount int64     `json:"character_count"`
	QuotaLimit     int64     `json:"quota_limit"`
	Remaining      float64   `json:"remaining_percentage"`
	Tier           UsageTier `json:"tier"`
}

// TierForRemaining maps a remaining-percentage to its usage tier
func TierForRemaining(remaining float64) UsageTier {
	switch {
	case remaining <= 0:
		return TierDisabled
	case remaining <= 0.10:
		return TierCritical
	case remaining <= 0.20:
		return TierWarning
	default:
		return TierAvailable
	}
}
