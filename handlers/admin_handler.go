// handlers/admin_handler.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/services"
	"github.com/maous26/GG2-sub000/utils"
)

// ScanTrigger is the scanner as seen by the admin surface.
type ScanTrigger interface {
	ForceScan(ctx context.Context, tier *int, maxRoutes int) ([]models.ScanReport, error)
	Stats() models.ScanRunStats
}

type BudgetReader interface {
	Usage(ctx context.Context) (models.BudgetCounters, error)
}

type RunHistory interface {
	RecentScanRuns(ctx context.Context, limit int) ([]models.ScanReport, error)
}

type DealReader interface {
	ActiveDeals(ctx context.Context, now time.Time, limit int) ([]models.Deal, error)
}

type CatalogReader interface {
	Routes() []models.StrategicRoute
	Tiers() []int
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// AdminDeps wires an AdminHandler. BaseContext bounds background scans and
// is normally cancelled on shutdown.
type AdminDeps struct {
	Scans       ScanTrigger
	Budget      BudgetReader
	Runs        RunHistory
	Deals       DealReader
	Catalog     CatalogReader
	DB          Pinger
	BaseContext context.Context
}

// AdminHandler serves health, scan control and read-only views.
type AdminHandler struct {
	deps   AdminDeps
	logger *slog.Logger
}

func NewAdminHandler(deps AdminDeps, logger *slog.Logger) *AdminHandler {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	return &AdminHandler{deps: deps, logger: utils.OrNop(logger).With("component", "admin_api")}
}

func (h *AdminHandler) respondWithError(c *gin.Context, code int, message string) {
	h.logger.Warn("api error", "status", code, "path", c.FullPath(), "error", message)
	c.JSON(code, models.ErrorResponse{Error: message})
}

// Health checks the relational store.
func (h *AdminHandler) Health(c *gin.Context) {
	if h.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.deps.DB.PingContext(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database connection error"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "flight deal scanner is healthy"})
}

// ForceScan triggers an immediate scan. With wait=false it answers 202 and
// scans in the background.
func (h *AdminHandler) ForceScan(c *gin.Context) {
	var req models.ForceScanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Tier != nil && !h.knownTier(*req.Tier) {
		h.respondWithError(c, http.StatusBadRequest, "unknown tier "+strconv.Itoa(*req.Tier))
		return
	}

	if !req.Wait {
		go func() {
			reports, err := h.deps.Scans.ForceScan(h.deps.BaseContext, req.Tier, req.MaxRoutes)
			if err != nil {
				h.logger.Warn("background forced scan finished with error", "error", err, "tiers", len(reports))
				return
			}
			h.logger.Info("background forced scan finished", "tiers", len(reports))
		}()
		c.JSON(http.StatusAccepted, models.ForceScanResponse{Accepted: true, Message: "scan started"})
		return
	}

	reports, err := h.deps.Scans.ForceScan(c.Request.Context(), req.Tier, req.MaxRoutes)
	switch {
	case errors.Is(err, services.ErrUnknownTier):
		h.respondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrScanInProgress) && allSkipped(reports):
		c.JSON(http.StatusConflict, models.ForceScanResponse{Reports: reports, Message: err.Error()})
	case err != nil && !errors.Is(err, services.ErrScanInProgress):
		h.logger.Error("forced scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.ForceScanResponse{Accepted: true, Reports: reports, Message: err.Error()})
	default:
		resp := models.ForceScanResponse{Accepted: true, Reports: reports}
		if err != nil {
			resp.Message = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *AdminHandler) knownTier(tier int) bool {
	for _, t := range h.deps.Catalog.Tiers() {
		if t == tier {
			return true
		}
	}
	return false
}

func allSkipped(reports []models.ScanReport) bool {
	for _, r := range reports {
		if !r.Skipped {
			return false
		}
	}
	return true
}

// ScanStats returns run statistics, budget usage and the latest persisted runs.
func (h *AdminHandler) ScanStats(c *gin.Context) {
	ctx := c.Request.Context()
	resp := models.StatsResponse{Stats: h.deps.Scans.Stats()}

	usage, err := h.deps.Budget.Usage(ctx)
	if err != nil {
		h.respondWithError(c, http.StatusInternalServerError, "failed to read budget usage")
		return
	}
	resp.Budget = usage

	if h.deps.Runs != nil {
		runs, err := h.deps.Runs.RecentScanRuns(ctx, queryInt(c, "runs", 10))
		if err != nil {
			h.logger.Warn("failed to load recent scan runs", "error", err)
		}
		resp.RecentRuns = runs
	}
	if resp.RecentRuns == nil {
		resp.RecentRuns = []models.ScanReport{}
	}
	c.JSON(http.StatusOK, resp)
}

// Catalog lists the strategic routes, optionally filtered by ?tier=.
func (h *AdminHandler) Catalog(c *gin.Context) {
	routes := h.deps.Catalog.Routes()
	if raw := c.Query("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil {
			h.respondWithError(c, http.StatusBadRequest, "tier must be an integer")
			return
		}
		filtered := routes[:0:0]
		for _, r := range routes {
			if r.Tier == tier {
				filtered = append(filtered, r)
			}
		}
		routes = filtered
	}
	c.JSON(http.StatusOK, gin.H{"count": len(routes), "routes": routes})
}

// ActiveDeals lists deals still within their validity window.
func (h *AdminHandler) ActiveDeals(c *gin.Context) {
	deals, err := h.deps.Deals.ActiveDeals(c.Request.Context(), time.Now().UTC(), queryInt(c, "limit", 50))
	if err != nil {
		h.logger.Error("failed to load active deals", "error", err)
		h.respondWithError(c, http.StatusInternalServerError, "failed to load deals")
		return
	}
	if deals == nil {
		deals = []models.Deal{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(deals), "deals": deals})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
