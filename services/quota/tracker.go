package quota

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services"
	"go.uber.org/zap"
)

// Tracker maintains the per-provider daily usage ledger in PostgreSQL.
//
// One row exists per (provider, date); concurrent writers for the same day
// serialize on the row via the upsert. Quota limits are registered once at
// startup alongside the provider configs.
type Tracker struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.RWMutex
	limits map[string]int64
}

// NewTracker creates a quota tracker backed by the given database
func NewTracker(db *sql.DB, logger *zap.Logger) *Tracker {
	return &Tracker{
		db:     db,
		logger: logger,
		limits: make(map[string]int64),
	}
}

// SetQuota registers a provider's daily quota limit. A zero limit means the
// provider is not quota-gated.
func (t *Tracker) SetQuota(provider string, limit int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits[provider] = limit
}

// quotaFor returns the configured limit for a provider (zero when unlimited)
func (t *Tracker) quotaFor(provider string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limits[provider]
}

// RecordUsage atomically adds to today's usage row for a provider.
//
// Negative counts fail with a validation error and leave the ledger
// untouched. Threshold crossings (warning/critical/exceeded) are logged,
// never returned as errors.
func (t *Tracker) RecordUsage(ctx context.Context, provider string, characterCount, requestCount int64) error {
	if characterCount < 0 || requestCount < 0 {
		return services.NewDomainError(services.ErrorTypeValidation, "usage counts must be non-negative", nil).
			WithDetail("provider", provider).
			WithDetail("character_count", characterCount).
			WithDetail("request_count", requestCount)
	}

	query := `
		INSERT INTO provider_usage (provider, usage_date, request_count, character_count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, usage_date)
		DO UPDATE SET
			request_count = provider_usage.request_count + EXCLUDED.request_count,
			character_count = provider_usage.character_count + EXCLUDED.character_count,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	_, err := t.db.ExecContext(ctx, query, provider, dateKey(now), requestCount, characterCount, now)
	if err != nil {
		return services.WrapInternal("failed to upsert usage record", err)
	}

	t.logThresholds(ctx, provider)
	return nil
}

// RemainingPercentage returns the fraction of the daily quota still unspent,
// clamped to [0, 1]. Providers with no configured quota always return 1.0.
func (t *Tracker) RemainingPercentage(ctx context.Context, provider string) (float64, error) {
	limit := t.quotaFor(provider)
	if limit <= 0 {
		return 1.0, nil
	}

	used, _, err := t.usedToday(ctx, provider)
	if err != nil {
		return 0, err
	}

	remaining := 1.0 - float64(used)/float64(limit)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Available reports whether the provider has any quota left today
func (t *Tracker) Available(ctx context.Context, provider string) (bool, error) {
	remaining, err := t.RemainingPercentage(ctx, provider)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// UsageStats returns today's counts plus the derived status tier
func (t *Tracker) UsageStats(ctx context.Context, provider string) (*models.UsageStats, error) {
	chars, requests, err := t.usedToday(ctx, provider)
	if err != nil {
		return nil, err
	}

	limit := t.quotaFor(provider)
	remaining := 1.0
	if limit > 0 {
		remaining = 1.0 - float64(chars)/float64(limit)
		if remaining < 0 {
			remaining = 0
		}
	}

	return &models.UsageStats{
		Provider:       provider,
		Date:           dateKey(time.Now()),
		RequestCount:   requests,
		CharacterCount: chars,
		QuotaLimit:     limit,
		Remaining:      remaining,
		Tier:           models.TierForRemaining(remaining),
	}, nil
}

// ResetDailyUsage deletes today's usage row for one provider, or for all
// providers when provider is empty. Administrative use only.
func (t *Tracker) ResetDailyUsage(ctx context.Context, provider string) (int64, error) {
	var (
		result sql.Result
		err    error
	)

	if provider == "" {
		result, err = t.db.ExecContext(ctx,
			`DELETE FROM provider_usage WHERE usage_date = $1`, dateKey(time.Now()))
	} else {
		result, err = t.db.ExecContext(ctx,
			`DELETE FROM provider_usage WHERE usage_date = $1 AND provider = $2`, dateKey(time.Now()), provider)
	}
	if err != nil {
		return 0, services.WrapInternal("failed to reset daily usage", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, services.WrapInternal("failed to get rows affected", err)
	}

	t.logger.Info("daily usage reset",
		zap.String("provider", provider),
		zap.Int64("rows_deleted", rows))

	return rows, nil
}

// usedToday returns today's character and request counts for a provider
func (t *Tracker) usedToday(ctx context.Context, provider string) (chars, requests int64, err error) {
	query := `
		SELECT COALESCE(character_count, 0), COALESCE(request_count, 0)
		FROM provider_usage
		WHERE provider = $1 AND usage_date = $2
	`

	err = t.db.QueryRowContext(ctx, query, provider, dateKey(time.Now())).Scan(&chars, &requests)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, services.WrapInternal("failed to query usage record", err)
	}

	return chars, requests, nil
}

// logThresholds emits a log signal when a provider crosses into a degraded
// usage tier. Failures here are swallowed: a stats read must never fail the
// write that triggered it.
func (t *Tracker) logThresholds(ctx context.Context, provider string) {
	stats, err := t.UsageStats(ctx, provider)
	if err != nil {
		t.logger.Debug("could not compute usage tier", zap.String("provider", provider), zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("provider", provider),
		zap.Int64("character_count", stats.CharacterCount),
		zap.Int64("quota_limit", stats.QuotaLimit),
		zap.Float64("remaining", stats.Remaining),
	}

	switch stats.Tier {
	case models.TierDisabled:
		t.logger.Warn("provider daily quota exceeded", fields...)
	case models.TierCritical:
		t.logger.Warn("provider daily quota critical", fields...)
	case models.TierWarning:
		t.logger.Warn("provider daily quota low", fields...)
	}
}

// dateKey formats a time as the ledger's calendar-date key
func dateKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// Schema is the DDL for the usage ledger, applied by deployment tooling
const Schema = `
CREATE TABLE IF NOT EXISTS provider_usage (
	provider        TEXT NOT NULL,
	usage_date      DATE NOT NULL,
	request_count   BIGINT NOT NULL DEFAULT 0,
	character_count BIGINT NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (provider, usage_date)
);
`
