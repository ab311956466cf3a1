package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
)

const loaderCSV = `origin,destination,tier,scan_frequency_hours,estimated_calls_per_scan,priority,expected_discount_range,target_user_segments,geographic_region,seasonal_boost,experimental
CDG,JFK,1,2,1,100,30-50,free|premium|enterprise,transatlantic,true,false
CDG,DXB,2,6,2,80,25-40,premium|enterprise,middle_east,false,false
CDG,XXX,two,6,1,10,10-20,free,europe,false,false
`

type fakeArchive struct {
	versions []models.CatalogSourceVersion
	routes   []models.StrategicRoute
	source   string
}

func (f *fakeArchive) LogCatalogSourceVersion(_ context.Context, v models.CatalogSourceVersion) error {
	f.versions = append(f.versions, v)
	return nil
}

func (f *fakeArchive) SaveCatalogRoutes(_ context.Context, routes []models.StrategicRoute, sourceFile string) error {
	f.routes = append([]models.StrategicRoute(nil), routes...)
	f.source = sourceFile
	return nil
}

func (f *fakeArchive) CatalogRoutes(context.Context) ([]models.StrategicRoute, error) {
	return f.routes, nil
}

func TestCatalogLoaderReadsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.csv")
	require.NoError(t, os.WriteFile(path, []byte(loaderCSV), 0o644))
	versions := &fakeArchive{}

	catalog, err := NewCatalogLoader(config.CatalogConfig{CSVPath: path}, nil, versions, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())

	require.Len(t, versions.versions, 1)
	v := versions.versions[0]
	assert.Equal(t, "strategic_routes", v.SourceName)
	assert.Equal(t, path, v.SourceLocation)
	assert.Equal(t, 2, v.RouteCount)
	assert.Equal(t, 1, v.SkippedCount)
	assert.Len(t, v.DataHash, 64)

	assert.Len(t, versions.routes, 2)
	assert.Equal(t, path, versions.source)
}

func TestCatalogLoaderDownloadsWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(loaderCSV))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "routes.csv")
	versions := &fakeArchive{}
	cfg := config.CatalogConfig{CSVPath: path, URL: srv.URL}

	catalog, err := NewCatalogLoader(cfg, srv.Client(), versions, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	assert.Equal(t, srv.URL, versions.versions[0].SourceLocation)
}

func TestCatalogLoaderFallsBackToLocalCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "routes.csv")
	require.NoError(t, os.WriteFile(path, []byte(loaderCSV), 0o644))

	catalog, err := NewCatalogLoader(config.CatalogConfig{CSVPath: path, URL: srv.URL}, srv.Client(), nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
}

func TestCatalogLoaderMissingFile(t *testing.T) {
	_, err := NewCatalogLoader(config.CatalogConfig{CSVPath: filepath.Join(t.TempDir(), "none.csv")}, nil, nil, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestCatalogLoaderRestoresStoredCatalog(t *testing.T) {
	archive := &fakeArchive{routes: []models.StrategicRoute{
		testRoute("CDG", "JFK", 1, 2),
		testRoute("CDG", "BKK", 2, 6),
	}}
	cfg := config.CatalogConfig{CSVPath: filepath.Join(t.TempDir(), "none.csv")}

	catalog, err := NewCatalogLoader(cfg, nil, archive, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	assert.Empty(t, archive.versions)
}

func TestCatalogLoaderEmptyArchiveKeepsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.csv")
	require.NoError(t, os.WriteFile(path, []byte("origin,destination\n"), 0o644))

	_, err := NewCatalogLoader(config.CatalogConfig{CSVPath: path}, nil, &fakeArchive{}, nil).Load(context.Background())
	assert.Error(t, err)
}
