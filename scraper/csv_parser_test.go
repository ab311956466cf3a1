package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
)

const catalogCSV = `origin,destination,tier,scan_frequency_hours,estimated_calls_per_scan,priority,expected_discount_range,target_user_segments,geographic_region,seasonal_boost,experimental
CDG,JFK,1,2,1,100,30-50,free|premium|enterprise,transatlantic,true,false
CDG,DXB,2,6,2,80,25-40,premium|enterprise,middle_east,false,false
CDG,XXX,two,6,1,10,10-20,free,europe,false,false
LYS,AMS,3,12,1,50,15-30,gold,europe,false,false
`

func TestParseRouteCatalogCsv(t *testing.T) {
	routes, skipped, err := ParseRouteCatalogCsv(strings.NewReader(catalogCSV), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, routes, 2)

	r := routes[0]
	assert.Equal(t, "CDG-JFK", r.Key())
	assert.Equal(t, 1, r.Tier)
	assert.Equal(t, 2.0, r.ScanFrequencyHours)
	assert.Equal(t, models.DiscountRange{Min: 30, Max: 50}, r.ExpectedDiscountRange)
	assert.Equal(t, models.SegmentSet{models.SegmentFree, models.SegmentPremium, models.SegmentEnterprise}, r.TargetUserSegments)
	assert.True(t, r.SeasonalBoost)
	assert.Equal(t, 2, routes[1].CallCost())
}

func TestParseRouteCatalogCsvEmpty(t *testing.T) {
	_, _, err := ParseRouteCatalogCsv(strings.NewReader(""), nil)
	assert.Error(t, err)
}

func TestDownloadCatalogCsv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogCSV))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "nested", "routes.csv")
	got, err := DownloadCatalogCsv(context.Background(), config.CatalogConfig{URL: srv.URL, CSVPath: path}, srv.Client(), nil)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, catalogCSV, string(data))

	_, err = DownloadCatalogCsv(context.Background(), config.CatalogConfig{CSVPath: path}, nil, nil)
	assert.Error(t, err)
}
