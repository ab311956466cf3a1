package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/services"
)

type fakeScans struct {
	mu      sync.Mutex
	calls   int
	tier    *int
	reports []models.ScanReport
	err     error
	done    chan struct{}
}

func (f *fakeScans) ForceScan(_ context.Context, tier *int, _ int) ([]models.ScanReport, error) {
	f.mu.Lock()
	f.calls++
	f.tier = tier
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return f.reports, f.err
}

func (f *fakeScans) Stats() models.ScanRunStats {
	return models.ScanRunStats{TotalScans: 4, DealsFound: 2}
}

type fakeBudget struct{}

func (fakeBudget) Usage(context.Context) (models.BudgetCounters, error) {
	return models.BudgetCounters{MonthKey: "2026-10", ReservedMonth: 120, MonthlyCap: 30000}, nil
}

type fakeRuns struct{}

func (fakeRuns) RecentScanRuns(context.Context, int) ([]models.ScanReport, error) {
	return []models.ScanReport{{ID: "run-1", Tier: 1}}, nil
}

type fakeDeals struct{ err error }

func (f fakeDeals) ActiveDeals(context.Context, time.Time, int) ([]models.Deal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Deal{{ID: "d1", Origin: "CDG", Destination: "JFK"}}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Routes() []models.StrategicRoute {
	return []models.StrategicRoute{
		{Origin: "CDG", Destination: "JFK", Tier: 1},
		{Origin: "CDG", Destination: "DXB", Tier: 2},
	}
}

func (fakeCatalog) Tiers() []int { return []int{1, 2} }

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestRouter(scans *fakeScans, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(AdminDeps{
		Scans:   scans,
		Budget:  fakeBudget{},
		Runs:    fakeRuns{},
		Deals:   fakeDeals{},
		Catalog: fakeCatalog{},
		DB:      fakePinger{},
	}, nil)
	return SetupRouter(h, token, nil)
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(&fakeScans{}, ""), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(AdminDeps{DB: fakePinger{err: errors.New("down")}}, nil)
	w = do(SetupRouter(h, "", nil), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestForceScanWaitReturnsReports(t *testing.T) {
	scans := &fakeScans{reports: []models.ScanReport{{ID: "r1", Tier: 1, RoutesScanned: 3}}}
	w := do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", `{"tier":1,"wait":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ForceScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, 3, resp.Reports[0].RoutesScanned)
	require.NotNil(t, scans.tier)
	assert.Equal(t, 1, *scans.tier)
}

func TestForceScanConflictWhenSkipped(t *testing.T) {
	scans := &fakeScans{
		reports: []models.ScanReport{{Tier: 1, Skipped: true}},
		err:     services.ErrScanInProgress,
	}
	w := do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", `{"tier":1,"wait":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestForceScanPartialSkipIsOK(t *testing.T) {
	scans := &fakeScans{
		reports: []models.ScanReport{{Tier: 1, Skipped: true}, {Tier: 2}},
		err:     services.ErrScanInProgress,
	}
	w := do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", `{"wait":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, scans.tier)
}

func TestForceScanRejectsUnknownTier(t *testing.T) {
	scans := &fakeScans{}
	w := do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", `{"tier":3,"wait":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, scans.calls)

	w = do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", `{"tier":"one"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForceScanInBackground(t *testing.T) {
	scans := &fakeScans{done: make(chan struct{})}
	w := do(newTestRouter(scans, ""), http.MethodPost, "/api/admin/scans/force", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-scans.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background scan was not started")
	}
}

func TestAdminTokenRequired(t *testing.T) {
	r := newTestRouter(&fakeScans{}, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/admin/scans/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/admin/scans/stats", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/admin/scans/stats", "", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/health", "").Code)
}

func TestDealsAndMetricsRequireToken(t *testing.T) {
	r := newTestRouter(&fakeScans{}, "s3cret")

	for _, path := range []string{"/metrics", "/api/deals/active"} {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, path, "").Code, path)
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, path, "", "Authorization", "Bearer s3cret").Code, path)
	}
}

func TestScanStats(t *testing.T) {
	w := do(newTestRouter(&fakeScans{}, ""), http.MethodGet, "/api/admin/scans/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Stats.TotalScans)
	assert.Equal(t, int64(120), resp.Budget.ReservedMonth)
	require.Len(t, resp.RecentRuns, 1)
	assert.Equal(t, "run-1", resp.RecentRuns[0].ID)
}

func TestCatalogFilter(t *testing.T) {
	r := newTestRouter(&fakeScans{}, "")

	w := do(r, http.MethodGet, "/api/admin/catalog?tier=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count  int                     `json:"count"`
		Routes []models.StrategicRoute `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "DXB", body.Routes[0].Destination)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/admin/catalog?tier=x", "").Code)
}

func TestActiveDeals(t *testing.T) {
	w := do(newTestRouter(&fakeScans{}, ""), http.MethodGet, "/api/deals/active?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"d1"`)
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(newTestRouter(&fakeScans{}, ""), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
