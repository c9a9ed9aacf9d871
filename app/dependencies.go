// Package app is the central dependency-injection wiring point: it opens the
// database, builds the services, and registers the configured providers with
// the orchestrator.
package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/inference-gateway/config"
	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services/breaker"
	"github.com/upb/inference-gateway/services/health"
	"github.com/upb/inference-gateway/services/orchestrator"
	"github.com/upb/inference-gateway/services/providers"
	"github.com/upb/inference-gateway/services/providers/gemini"
	"github.com/upb/inference-gateway/services/providers/openai"
	"github.com/upb/inference-gateway/services/quota"
	"github.com/upb/inference-gateway/services/respcache"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *sql.DB
	Logger *zap.Logger

	Quota        *quota.Tracker
	Cache        *respcache.Cache
	Orchestrator *orchestrator.Service
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Quota = quota.NewTracker(deps.DB, logger)
	deps.Cache = respcache.New(
		respcache.NewMemoryStore(cfg.Cache.MaxEntries), cfg.Cache.TTL, logger)

	if err := deps.initOrchestrator(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the PostgreSQL connection for the usage ledger
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.DB = db
	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initOrchestrator builds the orchestrator and registers every configured
// provider in the fallback chain
func (d *Dependencies) initOrchestrator(cfg *config.Config) error {
	svc := orchestrator.NewService(d.Quota, d.Cache, breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
	}, d.Logger)

	for _, pc := range cfg.Providers {
		adapter, err := buildAdapter(pc, d.Logger)
		if err != nil {
			return err
		}
		if err := svc.Register(pc, adapter); err != nil {
			return fmt.Errorf("failed to register provider %q: %w", pc.Name, err)
		}
	}

	if len(cfg.Providers) == 0 {
		d.Logger.Warn("no providers configured, all requests will be exhausted")
	}

	d.Orchestrator = svc
	return nil
}

// buildAdapter constructs the adapter for a provider's family
func buildAdapter(pc *models.ProviderConfig, logger *zap.Logger) (providers.Adapter, error) {
	tracker := health.NewTracker()

	switch pc.Type {
	case models.ProviderTypeGemini:
		return gemini.New(pc, tracker, logger), nil
	case models.ProviderTypeOpenAI:
		return openai.New(pc, tracker, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
