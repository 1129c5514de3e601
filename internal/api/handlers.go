package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/aggregator"
	"github.com/0xlajaz/xandeum-nexus/internal/cache"
	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/credits"
	"github.com/0xlajaz/xandeum-nexus/internal/history"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/telemetry"
	"github.com/0xlajaz/xandeum-nexus/internal/watchdog"
	"github.com/0xlajaz/xandeum-nexus/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler contains all HTTP handlers.
type Handler struct {
	config   *config.Config
	watchdog *watchdog.Watchdog
	agg      *aggregator.Aggregator
	credits  *credits.Client
	builder  *telemetry.Builder
	history  *history.Store
	cache    *cache.Cache
}

// NewHandler creates a new handler instance.
func NewHandler(cfg *config.Config, wd *watchdog.Watchdog, agg *aggregator.Aggregator,
	cr *credits.Client, builder *telemetry.Builder, hist *history.Store, c *cache.Cache) *Handler {
	return &Handler{
		config:   cfg,
		watchdog: wd,
		agg:      agg,
		credits:  cr,
		builder:  builder,
		history:  hist,
		cache:    c,
	}
}

// SetupRoutes configures all API routes.
func SetupRoutes(r *gin.Engine, h *Handler) {
	// Health check (no auth required)
	r.GET("/health", h.HealthCheck)

	v1 := r.Group("/api")
	v1.Use(middleware.APIKeyAuth(h.config.ValidAPIKeys))
	v1.Use(middleware.RateLimit(h.config.RateLimitRPM))
	{
		v1.GET("/telemetry", h.GetTelemetry)
		v1.GET("/nodes/:id", h.GetNodeByID)
		v1.GET("/history/trend", h.GetHistoryTrend)
	}
}

// HealthCheck returns system health status.
func (h *Handler) HealthCheck(c *gin.Context) {
	health := &models.HealthStatus{
		Status:    "healthy",
		Services:  make(map[string]string),
		Timestamp: time.Now().Unix(),
	}

	if err := h.cache.Ping(); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
		logrus.Warn("Redis health check failed:", err)
	} else {
		health.Services["redis"] = "healthy"
	}

	if _, ok := h.watchdog.LatestTelemetry(c.Request.Context()); ok {
		health.Services["watchdog"] = "healthy"
	} else {
		health.Services["watchdog"] = "stale"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// GetTelemetry returns the processed network snapshot: scored node rows
// plus network-wide KPIs. Served from the watchdog's cache when fresh,
// recomputed live otherwise.
func (h *Handler) GetTelemetry(c *gin.Context) {
	ctx := c.Request.Context()

	if cached, ok := h.watchdog.LatestTelemetry(ctx); ok {
		c.JSON(http.StatusOK, models.APIResponse{Data: cached})
		return
	}

	logrus.Info("Telemetry cache miss, collecting live snapshot")
	snap := h.agg.Collect(ctx)
	if len(snap.Nodes) == 0 {
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Error: "No seed peer reachable",
		})
		return
	}

	nodes, stats := h.builder.Build(snap, h.credits.Fetch(ctx))
	result := watchdog.CachedTelemetry{Timestamp: snap.Timestamp, Network: stats, Nodes: nodes}

	if h.history != nil {
		if err := h.history.Save(stats); err != nil {
			logrus.Warn("Failed to persist history from live collect:", err)
		}
	}

	c.JSON(http.StatusOK, models.APIResponse{Data: result})
}

// GetNodeByID returns the processed row for a single pod.
func (h *Handler) GetNodeByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Error: "Pod pubkey is required",
		})
		return
	}

	cached, ok := h.watchdog.LatestTelemetry(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Error: "No telemetry available yet",
		})
		return
	}

	for _, node := range cached.Nodes {
		if node.Pubkey == id {
			c.JSON(http.StatusOK, models.APIResponse{Data: node})
			return
		}
	}

	c.JSON(http.StatusNotFound, models.APIResponse{
		Error: "Pod not found in the latest snapshot",
	})
}

// GetHistoryTrend returns up to limit stored network summary rows in
// chronological order, for charting.
func (h *Handler) GetHistoryTrend(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "288"))
	if limit < 1 || limit > h.config.HistoryRetainedRows {
		limit = 288
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		logrus.Error("Failed to read history:", err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Error: "Failed to fetch network history",
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Data: records})
}
