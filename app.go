// app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/database"
	"github.com/maous26/GG2-sub000/observability"
	"github.com/maous26/GG2-sub000/scraper"
	"github.com/maous26/GG2-sub000/services"
	"github.com/maous26/GG2-sub000/store"
	"github.com/maous26/GG2-sub000/utils"
)

// resolveConfigPath returns the --config flag or the first default path that exists.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	for _, p := range []string{"config/config.yaml", "backend/config/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("config file not found at default paths, use --config")
}

// app holds the process-wide components. Fields are filled as far as the
// running command needs them.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  *observability.Tracer
	db      *database.Store
	kv      store.Store
	budget  *services.BudgetService
	catalog *services.RouteCatalog
	scanner *services.Scanner
}

// bootstrap loads config, installs the logger and opens the relational and
// counter stores.
func bootstrap(ctx context.Context) (*app, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	logger := utils.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", path, "version", version, "db_driver", cfg.Database.Driver, "store", cfg.Store.Backend)

	a := &app{cfg: cfg, logger: logger}

	a.tracer, err = observability.InitTracer(ctx, cfg.Tracing, version, logger)
	if err != nil {
		logger.Warn("tracing unavailable", "error", err)
	}

	a.db, err = database.InitDB(cfg.Database, logger.With("component", "database"))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	if err := a.db.Migrate(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	a.kv, err = store.Open(cfg.Store, logger.With("component", "store"))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("error opening counter store: %w", err)
	}
	a.budget = services.NewBudgetService(a.kv, cfg.Budget.MonthlyCap, cfg.Budget.DaysPerMonth, logger)
	return a, nil
}

// buildScanner loads the catalog and wires the scan pipeline.
func (a *app) buildScanner(ctx context.Context) error {
	cfg := a.cfg
	httpClient := &http.Client{Timeout: cfg.Provider.Timeout}

	catalog, err := services.NewCatalogLoader(cfg.Catalog, httpClient, a.db, a.logger).Load(ctx)
	if err != nil {
		return fmt.Errorf("error loading route catalog: %w", err)
	}
	a.catalog = catalog
	if est := catalog.EstimatedMonthlyCalls(); est > cfg.Budget.MonthlyCap {
		a.logger.Warn("catalog needs more calls than the monthly budget, later scans will be skipped",
			"estimated_monthly_calls", est, "monthly_cap", cfg.Budget.MonthlyCap)
	}

	provider, err := scraper.NewProvider(cfg.Provider, httpClient, a.logger)
	if err != nil {
		return err
	}
	cache := services.NewCacheService(a.kv, cfg.Cache.TTL, a.logger)
	query := services.NewQueryService(provider, cache, a.budget, services.QueryOptions{
		Retry: utils.RetryPolicy{
			MaxAttempts: cfg.Provider.MaxAttempts,
			BaseDelay:   cfg.Provider.BaseBackoff,
			MaxDelay:    cfg.Provider.MaxBackoff,
			Multiplier:  2,
		},
		RequestTimeout:    cfg.Provider.Timeout,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	}, a.logger)

	detector := services.NewDealDetector(services.ThresholdPolicyFromConfig(cfg), services.DetectorOptions{
		MaxDeals:      cfg.Detection.MaxDeals,
		Validity:      cfg.Scanner.DealValidity,
		ZScoreEnabled: cfg.Detection.ZScoreEnabled,
		ZScoreCutoff:  cfg.Detection.ZScoreCutoff,
	})
	matcher, err := services.NewUserMatcher(a.db, cfg.Matcher.SegmentFloors, cfg.Matcher.MaxUsersPerDeal, a.logger)
	if err != nil {
		return err
	}

	var notifier services.Notifier = services.NewLogNotifier(a.logger)
	if cfg.Notify.WebhookURL != "" {
		notifier = services.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, nil)
	}

	a.scanner, err = services.NewScanner(services.ScannerDeps{
		Catalog:  catalog,
		Query:    query,
		Detector: detector,
		Matcher:  matcher,
		Notifier: notifier,
		Repo:     a.db,
		Budget:   a.budget,
	}, services.ScannerOptionsFromConfig(cfg.Scanner), a.logger)
	return err
}

func (a *app) Close(ctx context.Context) {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.logger.Error("failed to close counter store", "error", err)
		}
	}
	if a.db != nil {
		a.db.CloseDB()
	}
	a.tracer.Shutdown(ctx)
}
