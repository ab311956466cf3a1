// services/catalog_loader.go
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/scraper"
	"github.com/maous26/GG2-sub000/utils"
)

const catalogSourceName = "strategic_routes"

// CatalogArchive records catalog loads and keeps the last good catalog.
type CatalogArchive interface {
	LogCatalogSourceVersion(ctx context.Context, v models.CatalogSourceVersion) error
	SaveCatalogRoutes(ctx context.Context, routes []models.StrategicRoute, sourceFile string) error
	CatalogRoutes(ctx context.Context) ([]models.StrategicRoute, error)
}

// CatalogLoader builds the route catalog from the configured CSV, refreshing
// the local copy first when a download URL is set.
type CatalogLoader struct {
	cfg     config.CatalogConfig
	client  scraper.HTTPClient
	archive CatalogArchive
	now     func() time.Time
	logger  *slog.Logger
}

// NewCatalogLoader wires a loader. client and archive may be nil.
func NewCatalogLoader(cfg config.CatalogConfig, client scraper.HTTPClient, archive CatalogArchive, logger *slog.Logger) *CatalogLoader {
	return &CatalogLoader{
		cfg:     cfg,
		client:  client,
		archive: archive,
		now:     time.Now,
		logger:  utils.OrNop(logger).With("component", "catalog_loader"),
	}
}

// Load downloads (when configured), parses and validates the catalog.
// A failed download falls back to the file already on disk, and an unusable
// file falls back to the last catalog stored in the archive.
func (l *CatalogLoader) Load(ctx context.Context) (*RouteCatalog, error) {
	location := l.cfg.CSVPath
	if l.cfg.URL != "" && l.client != nil {
		if _, err := scraper.DownloadCatalogCsv(ctx, l.cfg, l.client, l.logger); err != nil {
			l.logger.Warn("catalog download failed, using local copy", "url", l.cfg.URL, "error", err)
		} else {
			location = l.cfg.URL
		}
	}

	catalog, skipped, hash, err := l.readFile()
	if err != nil {
		return l.restore(ctx, err)
	}

	l.logger.Info("route catalog loaded",
		"source", location,
		"routes", catalog.Len(),
		"skipped", skipped,
		"estimated_monthly_calls", catalog.EstimatedMonthlyCalls())

	if l.archive != nil {
		if err := l.archive.SaveCatalogRoutes(ctx, catalog.Routes(), location); err != nil {
			l.logger.Warn("failed to store catalog routes", "error", err)
		}
		v := models.CatalogSourceVersion{
			SourceName:     catalogSourceName,
			SourceLocation: location,
			RouteCount:     catalog.Len(),
			SkippedCount:   skipped,
			DataHash:       hash,
			LoadedAt:       l.now().UTC(),
		}
		if err := l.archive.LogCatalogSourceVersion(ctx, v); err != nil {
			l.logger.Warn("failed to record catalog version", "error", err)
		}
	}
	return catalog, nil
}

func (l *CatalogLoader) readFile() (*RouteCatalog, int, string, error) {
	raw, err := os.ReadFile(l.cfg.CSVPath)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to read route catalog %s: %w", l.cfg.CSVPath, err)
	}
	sum := sha256.Sum256(raw)

	routes, skipped, err := scraper.ParseRouteCatalogCsv(bytes.NewReader(raw), l.logger)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to parse route catalog %s: %w", l.cfg.CSVPath, err)
	}
	catalog, err := NewRouteCatalog(routes, l.logger)
	if err != nil {
		return nil, 0, "", err
	}
	if catalog.Len() == 0 {
		return nil, 0, "", fmt.Errorf("route catalog %s has no valid routes", l.cfg.CSVPath)
	}
	return catalog, skipped, hex.EncodeToString(sum[:]), nil
}

// restore rebuilds the catalog from the archive, returning cause when there is nothing stored.
func (l *CatalogLoader) restore(ctx context.Context, cause error) (*RouteCatalog, error) {
	if l.archive == nil {
		return nil, cause
	}
	routes, err := l.archive.CatalogRoutes(ctx)
	if err != nil {
		l.logger.Warn("failed to read stored catalog", "error", err)
		return nil, cause
	}
	if len(routes) == 0 {
		return nil, cause
	}
	catalog, err := NewRouteCatalog(routes, l.logger)
	if err != nil {
		return nil, fmt.Errorf("%w (stored catalog also unusable: %v)", cause, err)
	}
	l.logger.Warn("route catalog file unusable, using stored catalog", "error", cause, "routes", catalog.Len())
	return catalog, nil
}
