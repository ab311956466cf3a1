// handlers/router.go
package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maous26/GG2-sub000/utils"
)

// SetupRouter mounts the health, metrics, deal and admin routes. Only health
// is open; everything else requires the admin token when one is set.
func SetupRouter(h *AdminHandler, adminToken string, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestTiming(), RequestLogger(utils.OrNop(logger).With("component", "http")))
	auth := AdminAuth(adminToken)

	r.GET("/api/health", h.Health)
	r.GET("/metrics", auth, gin.WrapH(promhttp.Handler()))
	r.GET("/api/deals/active", auth, h.ActiveDeals)

	admin := r.Group("/api/admin", auth)
	{
		admin.POST("/scans/force", h.ForceScan)
		admin.GET("/scans/stats", h.ScanStats)
		admin.GET("/catalog", h.Catalog)
	}
	return r
}
