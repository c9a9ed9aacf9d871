package quota

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services"
	"go.uber.org/zap"
)

func newMockTracker(t *testing.T) (*Tracker, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTracker(db, zap.NewNop()), mock
}

func usageRows(chars, requests int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"character_count", "request_count"}).AddRow(chars, requests)
}

func TestRecordUsage_RejectsNegativeValues(t *testing.T) {
	tracker, mock := newMockTracker(t)
	ctx := context.Background()

	t.Run("negative characters", func(t *testing.T) {
		err := tracker.RecordUsage(ctx, "gemini-flash", -1, 1)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("negative requests", func(t *testing.T) {
		err := tracker.RecordUsage(ctx, "gemini-flash", 100, -1)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	// No SQL may have been issued for rejected input
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUsage_UpsertsTodayRow(t *testing.T) {
	tracker, mock := newMockTracker(t)
	tracker.SetQuota("gemini-flash", 10000)

	mock.ExpectExec("INSERT INTO provider_usage").
		WithArgs("gemini-flash", dateKey(time.Now()), int64(1), int64(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Threshold check reads the row back after the write
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("gemini-flash", dateKey(time.Now())).
		WillReturnRows(usageRows(500, 1))

	err := tracker.RecordUsage(context.Background(), "gemini-flash", 500, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemainingPercentage_NoQuotaConfigured(t *testing.T) {
	tracker, mock := newMockTracker(t)

	remaining, err := tracker.RemainingPercentage(context.Background(), "unmetered")
	require.NoError(t, err)
	assert.Equal(t, 1.0, remaining)

	// No SQL needed when the provider is unmetered
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemainingPercentage_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		used     int64
		expected float64
	}{
		{"untouched", 1000, 0, 1.0},
		{"half spent", 1000, 500, 0.5},
		{"critical", 1000, 900, 0.10},
		{"exactly spent", 1000, 1000, 0.0},
		{"overspent clamps to zero", 1000, 1500, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, mock := newMockTracker(t)
			tracker.SetQuota("p", tt.limit)

			mock.ExpectQuery("SELECT COALESCE").
				WithArgs("p", dateKey(time.Now())).
				WillReturnRows(usageRows(tt.used, 1))

			remaining, err := tracker.RemainingPercentage(context.Background(), "p")
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, remaining, 1e-9)
			assert.GreaterOrEqual(t, remaining, 0.0)
			assert.LessOrEqual(t, remaining, 1.0)
		})
	}
}

func TestRemainingPercentage_NoRowMeansUnspent(t *testing.T) {
	tracker, mock := newMockTracker(t)
	tracker.SetQuota("p", 1000)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("p", dateKey(time.Now())).
		WillReturnRows(sqlmock.NewRows([]string{"character_count", "request_count"}))

	remaining, err := tracker.RemainingPercentage(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1.0, remaining)
}

func TestAvailable(t *testing.T) {
	t.Run("quota left", func(t *testing.T) {
		tracker, mock := newMockTracker(t)
		tracker.SetQuota("p", 1000)

		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(usageRows(999, 10))

		available, err := tracker.Available(context.Background(), "p")
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("quota spent", func(t *testing.T) {
		tracker, mock := newMockTracker(t)
		tracker.SetQuota("p", 1000)

		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(usageRows(1000, 10))

		available, err := tracker.Available(context.Background(), "p")
		require.NoError(t, err)
		assert.False(t, available)
	})
}

func TestUsageStats_Tiers(t *testing.T) {
	tests := []struct {
		name string
		used int64
		tier models.UsageTier
	}{
		{"available", 100, models.TierAvailable},
		{"warning", 800, models.TierWarning},
		{"critical", 900, models.TierCritical},
		{"disabled", 1000, models.TierDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, mock := newMockTracker(t)
			tracker.SetQuota("p", 1000)

			mock.ExpectQuery("SELECT COALESCE").
				WillReturnRows(usageRows(tt.used, 7))

			stats, err := tracker.UsageStats(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, tt.tier, stats.Tier)
			assert.Equal(t, tt.used, stats.CharacterCount)
			assert.Equal(t, int64(7), stats.RequestCount)
		})
	}
}

func TestUsageStats_CriticalScenario(t *testing.T) {
	// quota_limit=1000, 900 characters recorded: 10% remaining, critical tier
	tracker, mock := newMockTracker(t)
	tracker.SetQuota("p", 1000)

	mock.ExpectExec("INSERT INTO provider_usage").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(usageRows(900, 1))

	err := tracker.RecordUsage(context.Background(), "p", 900, 1)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(usageRows(900, 1))

	remaining, err := tracker.RemainingPercentage(context.Background(), "p")
	require.NoError(t, err)
	assert.InDelta(t, 0.10, remaining, 1e-9)
	assert.Equal(t, models.TierCritical, models.TierForRemaining(remaining))
}

func TestResetDailyUsage(t *testing.T) {
	t.Run("single provider", func(t *testing.T) {
		tracker, mock := newMockTracker(t)

		mock.ExpectExec("DELETE FROM provider_usage").
			WithArgs(dateKey(time.Now()), "p").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rows, err := tracker.ResetDailyUsage(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all providers", func(t *testing.T) {
		tracker, mock := newMockTracker(t)

		mock.ExpectExec("DELETE FROM provider_usage").
			WithArgs(dateKey(time.Now())).
			WillReturnResult(sqlmock.NewResult(0, 3))

		rows, err := tracker.ResetDailyUsage(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
