// scraper/csv_downloader.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/utils"
)

// DownloadFile downloads url to localSavePath, replacing the file only once the
// whole body has arrived.
func DownloadFile(ctx context.Context, client HTTPClient, url, localSavePath string, logger *slog.Logger) error {
	logger = utils.OrNop(logger)
	logger.Info("downloading file", "url", url, "path", localSavePath)

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build GET request to %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file from %s: %w", url, &StatusError{Code: resp.StatusCode})
	}

	dir := filepath.Dir(localSavePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(localSavePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy downloaded content to %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), localSavePath); err != nil {
		return fmt.Errorf("failed to move download into %s: %w", localSavePath, err)
	}

	logger.Info("download complete", "url", url, "path", localSavePath)
	return nil
}

// DownloadCatalogCsv refreshes the local catalog file from cfg.URL and returns its path.
func DownloadCatalogCsv(ctx context.Context, cfg config.CatalogConfig, client HTTPClient, logger *slog.Logger) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("route catalog URL is not configured")
	}
	if cfg.CSVPath == "" {
		return "", fmt.Errorf("local save path for route catalog is not configured")
	}
	if err := DownloadFile(ctx, client, cfg.URL, cfg.CSVPath, logger); err != nil {
		return "", fmt.Errorf("failed to download route catalog: %w", err)
	}
	return cfg.CSVPath, nil
}
