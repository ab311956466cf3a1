package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, int64(30000), cfg.Budget.MonthlyCap)
	assert.Equal(t, int64(1000), cfg.Budget.DailyCap())
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Scanner.DealValidity)
	assert.Equal(t, 300*time.Millisecond, cfg.Scanner.InterRouteDelay)
	assert.Equal(t, 3, cfg.Provider.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Provider.BaseBackoff)
	assert.Equal(t, 10, cfg.Detection.MaxDeals)
	assert.Equal(t, 120, cfg.Matcher.MaxUsersPerDeal)
	assert.Equal(t, "tier", cfg.Scanner.Exclusion)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
budget:
  monthly_cap: 9000
cache:
  ttl: 5m
scanner:
  exclusion: global
`)
	t.Setenv("PROVIDER_API_KEY", "secret")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(300), cfg.Budget.DailyCap())
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "global", cfg.Scanner.Exclusion)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
	assert.Equal(t, "9090", cfg.Server.Port)
	// untouched sections keep defaults
	assert.Equal(t, 3, cfg.Provider.MaxAttempts)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "scanner:\n  exclusion: sometimes\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "cache:\n  ttl: soon\n"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
