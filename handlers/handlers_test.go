package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/inference-gateway/app"
	"github.com/upb/inference-gateway/config"
	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services"
	"github.com/upb/inference-gateway/services/breaker"
	"github.com/upb/inference-gateway/services/health"
	"github.com/upb/inference-gateway/services/orchestrator"
	"github.com/upb/inference-gateway/services/providers"
	"github.com/upb/inference-gateway/services/quota"
	"github.com/upb/inference-gateway/services/respcache"
)

// stubAdapter serves a fixed response or error
type stubAdapter struct {
	name    string
	tracker *health.Tracker
	content string
	fail    bool
}

func (s *stubAdapter) Name() string                { return s.name }
func (s *stubAdapter) QuotaUnit() models.QuotaUnit { return models.QuotaUnitCharacters }
func (s *stubAdapter) Health() *health.Tracker     { return s.tracker }

func (s *stubAdapter) Call(_ context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	if s.fail {
		s.tracker.RecordFailure(time.Millisecond)
		return nil, services.WrapProvider("stub failure", nil)
	}
	s.tracker.RecordSuccess(time.Millisecond)
	return &providers.GenerationResponse{
		Content:    s.content,
		UsageUnits: int64(len(req.Prompt) + len(s.content)),
		Provider:   s.name,
	}, nil
}

// newTestDeps wires dependencies over a sqlmock database
func newTestDeps(t *testing.T, adapters ...*stubAdapter) (*app.Dependencies, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	tracker := quota.NewTracker(db, logger)
	cache := respcache.New(respcache.NewMemoryStore(64), time.Minute, logger)
	svc := orchestrator.NewService(tracker, cache, breaker.DefaultConfig(), logger)

	for i, a := range adapters {
		a.tracker = health.NewTracker()
		require.NoError(t, svc.Register(&models.ProviderConfig{
			Name:     a.name,
			Type:     models.ProviderTypeGemini,
			APIKey:   "k",
			Model:    "m",
			Priority: i + 1,
			Enabled:  true,
		}, a))
	}

	return &app.Dependencies{
		Config:       &config.Config{},
		DB:           db,
		Logger:       logger,
		Quota:        tracker,
		Cache:        cache,
		Orchestrator: svc,
	}, mock
}

// expectUsageUpsert registers the SQL expectations for one successful
// generation: the ledger upsert followed by the threshold stats read
func expectUsageUpsert(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO provider_usage").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"character_count", "request_count"}).AddRow(10, 1))
}

func TestGenerateHandler_Success(t *testing.T) {
	deps, mock := newTestDeps(t, &stubAdapter{name: "primary", content: "generated text"})
	expectUsageUpsert(mock)

	body, _ := json.Marshal(GenerateRequest{Prompt: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	GenerateHandler(deps)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "generated text", envelope.Data.Content)
	assert.Equal(t, "primary", envelope.Data.Provider)
	assert.False(t, envelope.Data.Cached)
	assert.NotEmpty(t, envelope.Data.RequestID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateHandler_InvalidJSON(t *testing.T) {
	deps, _ := newTestDeps(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	GenerateHandler(deps)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateHandler_MissingPrompt(t *testing.T) {
	deps, _ := newTestDeps(t)

	body, _ := json.Marshal(GenerateRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	GenerateHandler(deps)(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Error)
}

func TestGenerateHandler_Exhaustion(t *testing.T) {
	deps, _ := newTestDeps(t, &stubAdapter{name: "broken", fail: true})

	body, _ := json.Marshal(GenerateRequest{Prompt: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	GenerateHandler(deps)(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "all_providers_exhausted", resp.Error)
	assert.Equal(t, float64(1), resp.Details["providers_tried"])
}

func TestGenerateHandler_CachedSecondCall(t *testing.T) {
	deps, mock := newTestDeps(t, &stubAdapter{name: "primary", content: "memoized"})
	expectUsageUpsert(mock)

	body, _ := json.Marshal(GenerateRequest{Prompt: "hello", UseCache: true})

	rec := httptest.NewRecorder()
	GenerateHandler(deps)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second identical request is served from the cache: no further SQL
	rec = httptest.NewRecorder()
	GenerateHandler(deps)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Cached)
	assert.Equal(t, "memoized", envelope.Data.Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvidersStatusHandler(t *testing.T) {
	deps, mock := newTestDeps(t, &stubAdapter{name: "primary", content: "x"})
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"character_count", "request_count"}).AddRow(0, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	rec := httptest.NewRecorder()

	ProvidersStatusHandler(deps)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []orchestrator.ProviderStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "primary", envelope.Data[0].Name)
	assert.Equal(t, breaker.StateClosed, envelope.Data[0].Breaker.State)
}

func TestStatsHandler(t *testing.T) {
	deps, _ := newTestDeps(t)

	rec := httptest.NewRecorder()
	StatsHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data orchestrator.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(0), envelope.Data.TotalRequests)
}

func TestResetBreakerHandler(t *testing.T) {
	deps, _ := newTestDeps(t, &stubAdapter{name: "primary", content: "x"})

	t.Run("known provider", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/providers/primary/reset-breaker", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("name", "primary")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		rec := httptest.NewRecorder()
		ResetBreakerHandler(deps)(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/providers/ghost/reset-breaker", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("name", "ghost")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		rec := httptest.NewRecorder()
		ResetBreakerHandler(deps)(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResetQuotaHandler(t *testing.T) {
	deps, mock := newTestDeps(t)
	mock.ExpectExec("DELETE FROM provider_usage").
		WillReturnResult(sqlmock.NewResult(0, 2))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/quota/reset", nil)
	rec := httptest.NewRecorder()

	ResetQuotaHandler(deps)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(2), envelope.Data["rows_deleted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthHandler(t *testing.T) {
	deps, mock := newTestDeps(t)
	h := NewHealthHandler(deps.DB, deps.Logger)

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness with healthy database", func(t *testing.T) {
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Checks["database"])
	})

	t.Run("readiness with unreachable database", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(assert.AnError)

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Checks["database"])
	})
}
