// Package api wires together the HTTP routes of the logrelay admin surface.
//
// Everything under /api/v1/audit is a read-only projection over the audit
// trail except POST /api/v1/audit/prune, which triggers age-based rotation.
// The surface carries no authentication: identity is asserted by the gateway
// in front of it via the X-Actor-* headers, which the audit-capture middleware
// records for every administrative operation.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/logrelay/logrelay/internal/auditlog"
	"github.com/logrelay/logrelay/internal/config"
	"github.com/logrelay/logrelay/internal/logger"
	"github.com/logrelay/logrelay/internal/middleware"
)

// SetupRouter builds the Gin engine with all middleware and routes registered.
func SetupRouter(store *auditlog.Store, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.AuditCaptureMiddleware(store, &cfg.Audit))

	queries := auditlog.NewQueries(store)
	reader := logger.Reader(auditlog.NewTrailReader(store))

	router.GET("/healthz", healthHandler)

	v1 := router.Group("/api/v1/audit")
	{
		v1.GET("", recentHandler(queries))
		v1.GET("/window", windowHandler(queries))
		v1.GET("/actors/:id", byActorHandler(queries))
		v1.GET("/resources/:type/:id", byResourceHandler(queries))
		v1.GET("/dates", datesHandler(reader))
		v1.GET("/dates/:date", byDateHandler(reader))
		v1.POST("/prune", pruneHandler(store, &cfg.Audit))
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// recentHandler serves the paginated newest-first view of the trail.
// Query params: limit (default 50), offset (default 0).
func recentHandler(queries *auditlog.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", auditlog.DefaultQueryLimit)
		offset := intQuery(c, "offset", 0)

		records := queries.Recent(limit, offset)
		c.JSON(http.StatusOK, gin.H{
			"logs":   emptyIfNil(records),
			"limit":  limit,
			"offset": offset,
		})
	}
}

// windowHandler serves all records newer than now minus the days query param
// (default 7), newest first.
func windowHandler(queries *auditlog.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := intQuery(c, "days", 7)
		records := queries.RecentWithinDays(days)
		c.JSON(http.StatusOK, gin.H{
			"logs": emptyIfNil(records),
			"days": days,
		})
	}
}

func byActorHandler(queries *auditlog.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", auditlog.DefaultQueryLimit)
		records := queries.ByActor(c.Param("id"), limit)
		c.JSON(http.StatusOK, gin.H{
			"logs":     emptyIfNil(records),
			"actor_id": c.Param("id"),
		})
	}
}

func byResourceHandler(queries *auditlog.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := queries.ByResource(c.Param("type"), c.Param("id"))
		c.JSON(http.StatusOK, gin.H{
			"logs":          emptyIfNil(records),
			"resource_type": c.Param("type"),
			"resource_id":   c.Param("id"),
		})
	}
}

// datesHandler lists the dates with at least one audit entry, newest first.
func datesHandler(reader logger.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		dates, err := reader.ListAvailableDates(auditlog.CategoryAdminActivity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dates"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"dates": dates})
	}
}

// byDateHandler serves one day's entries, optionally filtered by the actor
// query param.
func byDateHandler(reader logger.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Param("date")
		entries, err := reader.ReadLogs(auditlog.CategoryAdminActivity, date, c.Query("actor"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"logs": entries,
			"date": date,
		})
	}
}

// pruneHandler triggers age-based rotation. The request body may carry
// {"max_age_days": N}; absent or invalid, the configured retention applies.
func pruneHandler(store *auditlog.Store, cfg *config.AuditConfig) gin.HandlerFunc {
	type pruneRequest struct {
		MaxAgeDays int `json:"max_age_days"`
	}
	return func(c *gin.Context) {
		req := pruneRequest{MaxAgeDays: cfg.RetentionDays}
		// Body is optional; a malformed one falls back to configured retention.
		_ = c.ShouldBindJSON(&req)
		if req.MaxAgeDays < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_age_days must be positive"})
			return
		}

		removed := store.PruneOlderThan(req.MaxAgeDays)
		c.JSON(http.StatusOK, gin.H{
			"removed":      removed,
			"max_age_days": req.MaxAgeDays,
		})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// emptyIfNil keeps the JSON response shape stable: an empty result serializes
// as [] rather than null.
func emptyIfNil(records []auditlog.Record) []auditlog.Record {
	if records == nil {
		return []auditlog.Record{}
	}
	return records
}
