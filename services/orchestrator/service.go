// Package orchestrator implements the provider fallback chain: it selects
// candidates in priority order, applies the circuit-breaker and quota gates,
// invokes adapters, records outcomes, and integrates the response cache.
package orchestrator

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services"
	"github.com/upb/inference-gateway/services/breaker"
	"github.com/upb/inference-gateway/services/providers"
	"github.com/upb/inference-gateway/services/respcache"
	"go.uber.org/zap"
)

// QuotaTracker is the usage-ledger capability the orchestrator depends on
type QuotaTracker interface {
	SetQuota(provider string, limit int64)
	RecordUsage(ctx context.Context, provider string, characterCount, requestCount int64) error
	Available(ctx context.Context, provider string) (bool, error)
	UsageStats(ctx context.Context, provider string) (*models.UsageStats, error)
}

// registration pairs one provider's config and adapter with the breaker and
// counters the orchestrator owns for it
type registration struct {
	config  *models.ProviderConfig
	adapter providers.Adapter
	breaker *breaker.CircuitBreaker

	calls    uint64
	failures uint64
}

// Service routes generation requests across registered providers.
//
// Safe for concurrent use: per-provider breaker and health state carry their
// own locks, counters are atomic, and the registration list is immutable
// between Register calls.
type Service struct {
	quota      QuotaTracker
	cache      *respcache.Cache
	breakerCfg breaker.Config
	logger     *zap.Logger

	mu     sync.RWMutex
	byName map[string]*registration
	chain  []*registration // ascending priority, registration order within ties

	totalRequests uint64
	cacheHits     uint64
	cacheMisses   uint64
}

// NewService creates an orchestrator. Providers are added via Register.
func NewService(quota QuotaTracker, cache *respcache.Cache, breakerCfg breaker.Config, logger *zap.Logger) *Service {
	return &Service{
		quota:      quota,
		cache:      cache,
		breakerCfg: breakerCfg,
		logger:     logger,
		byName:     make(map[string]*registration),
	}
}

// Register adds a provider to the fallback chain. The chain is ordered by
// ascending priority; providers with equal priority keep registration order.
func (s *Service) Register(config *models.ProviderConfig, adapter providers.Adapter) error {
	if config == nil || adapter == nil {
		return services.NewDomainError(services.ErrorTypeValidation, "nil provider config or adapter", nil)
	}
	if config.Name == "" {
		return services.NewDomainError(services.ErrorTypeValidation, "empty provider name", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[config.Name]; exists {
		return services.NewDomainError(services.ErrorTypeValidation, "duplicate provider name", nil).
			WithDetail("provider", config.Name)
	}

	reg := &registration{
		config:  config,
		adapter: adapter,
		breaker: breaker.New(s.breakerCfg),
	}
	s.byName[config.Name] = reg
	s.chain = append(s.chain, reg)
	sort.SliceStable(s.chain, func(i, j int) bool {
		return s.chain[i].config.Priority < s.chain[j].config.Priority
	})

	if config.HasQuota() {
		s.quota.SetQuota(config.Name, config.DailyQuota)
	}

	s.logger.Info("provider registered",
		zap.String("provider", config.Name),
		zap.String("type", string(config.Type)),
		zap.Int("priority", config.Priority),
		zap.Bool("enabled", config.Enabled))
	return nil
}

// Generate serves one request: cache first, then the fallback chain.
//
// A cache hit returns immediately with no provider, breaker, or quota
// mutation. Otherwise providers are tried once each in priority order,
// skipping any that are disabled, circuit-open, or out of quota. The first
// success wins; exhaustion is returned as Success=false, never as an error.
func (s *Service) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	atomic.AddUint64(&s.totalRequests, 1)

	if req.CacheKey != "" {
		if resp, ok := s.fromCache(ctx, req.CacheKey); ok {
			atomic.AddUint64(&s.cacheHits, 1)
			return resp, nil
		}
		atomic.AddUint64(&s.cacheMisses, 1)
	}

	s.mu.RLock()
	chain := s.chain
	s.mu.RUnlock()

	genReq := &providers.GenerationRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}

	var lastErr error
	tried := 0

	for _, reg := range chain {
		if !s.eligible(ctx, reg) {
			continue
		}

		tried++
		resp, err := reg.adapter.Call(ctx, genReq)
		if err != nil {
			lastErr = err

			// Abandoned call: the caller is gone, no definitive outcome
			if ctx.Err() != nil {
				break
			}

			reg.breaker.RecordFailure()
			atomic.AddUint64(&reg.failures, 1)
			s.logger.Warn("provider call failed, falling back",
				zap.String("provider", reg.config.Name),
				zap.String("error_type", string(services.GetErrorType(err))),
				zap.Error(err))
			continue
		}

		reg.breaker.RecordSuccess()
		atomic.AddUint64(&reg.calls, 1)

		if err := s.quota.RecordUsage(ctx, reg.config.Name, resp.UsageUnits, 1); err != nil {
			// A successful generation is never failed by ledger trouble
			s.logger.Warn("usage recording failed",
				zap.String("provider", reg.config.Name),
				zap.Error(err))
		}

		if req.CacheKey != "" {
			s.toCache(ctx, req.CacheKey, resp)
		}

		s.logger.Info("request served",
			zap.String("provider", reg.config.Name),
			zap.Int64("usage_units", resp.UsageUnits),
			zap.Duration("response_time", resp.ResponseTime),
			zap.Int("providers_tried", tried))

		return &Response{
			Success:      true,
			Content:      resp.Content,
			Provider:     resp.Provider,
			UsageUnits:   resp.UsageUnits,
			ResponseTime: resp.ResponseTime,
		}, nil
	}

	exhausted := services.NewDomainError(services.ErrorTypeExhausted,
		"all providers exhausted", lastErr).
		WithDetail("providers_tried", tried)
	message := exhausted.Error()

	s.logger.Error("all providers exhausted",
		zap.Int("providers_tried", tried),
		zap.Error(lastErr))

	return &Response{
		Success:        false,
		Error:          message,
		ProvidersTried: tried,
	}, nil
}

// eligible applies the three gates: enabled, circuit closed (or probing), and
// quota remaining. Gates are skip decisions, never errors.
func (s *Service) eligible(ctx context.Context, reg *registration) bool {
	if !reg.config.Enabled {
		return false
	}

	if !reg.breaker.Allow() {
		s.logger.Debug("provider skipped, circuit open",
			zap.String("provider", reg.config.Name))
		return false
	}

	if reg.config.HasQuota() {
		available, err := s.quota.Available(ctx, reg.config.Name)
		if err != nil {
			// Fail open: a broken ledger must not take every provider down
			s.logger.Warn("quota check failed, assuming available",
				zap.String("provider", reg.config.Name),
				zap.Error(err))
			return true
		}
		if !available {
			s.logger.Debug("provider skipped, quota exhausted",
				zap.String("provider", reg.config.Name))
			return false
		}
	}

	return true
}

func (s *Service) fromCache(ctx context.Context, key string) (*Response, bool) {
	raw, found := s.cache.Get(ctx, key)
	if !found {
		return nil, false
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		s.logger.Warn("discarding malformed cache entry", zap.Error(err))
		s.cache.Delete(ctx, key)
		return nil, false
	}

	return &Response{
		Success:  true,
		Content:  envelope.Content,
		Provider: envelope.Provider,
		Cached:   true,
	}, true
}

func (s *Service) toCache(ctx context.Context, key string, resp *providers.GenerationResponse) {
	raw, err := json.Marshal(cacheEnvelope{
		Content:  resp.Content,
		Provider: resp.Provider,
	})
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, string(raw))
}

// ResetBreaker forces a provider's circuit to CLOSED. Administrative only.
func (s *Service) ResetBreaker(name string) error {
	s.mu.RLock()
	reg, exists := s.byName[name]
	s.mu.RUnlock()

	if !exists {
		return services.NewDomainError(services.ErrorTypeValidation, "unknown provider", nil).
			WithDetail("provider", name)
	}

	reg.breaker.Reset()
	s.logger.Info("circuit breaker reset", zap.String("provider", name))
	return nil
}

// Stats returns the process-lifetime counters
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalRequests:    atomic.LoadUint64(&s.totalRequests),
		CacheHits:        atomic.LoadUint64(&s.cacheHits),
		CacheMisses:      atomic.LoadUint64(&s.cacheMisses),
		ProviderCalls:    make(map[string]uint64, len(s.chain)),
		ProviderFailures: make(map[string]uint64, len(s.chain)),
		Cache:            s.cache.Stats(),
	}
	for _, reg := range s.chain {
		stats.ProviderCalls[reg.config.Name] = atomic.LoadUint64(&reg.calls)
		stats.ProviderFailures[reg.config.Name] = atomic.LoadUint64(&reg.failures)
	}
	return stats
}

// Status returns the observable state of every registered provider in chain
// order. Usage stats are best-effort: a ledger error leaves Usage nil.
func (s *Service) Status(ctx context.Context) []ProviderStatus {
	s.mu.RLock()
	chain := s.chain
	s.mu.RUnlock()

	statuses := make([]ProviderStatus, 0, len(chain))
	for _, reg := range chain {
		status := ProviderStatus{
			Name:     reg.config.Name,
			Type:     reg.config.Type,
			Model:    reg.config.Model,
			Priority: reg.config.Priority,
			Enabled:  reg.config.Enabled,
			Calls:    atomic.LoadUint64(&reg.calls),
			Failures: atomic.LoadUint64(&reg.failures),
			Breaker:  reg.breaker.Status(),
			Health:   reg.adapter.Health().Status(),
		}

		if usage, err := s.quota.UsageStats(ctx, reg.config.Name); err == nil {
			status.Usage = usage
		}

		statuses = append(statuses, status)
	}
	return statuses
}
