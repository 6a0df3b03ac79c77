package handler

import (
	"net/http"
	"runtime"
	"time"

	"tubegate/internal/model"
	"tubegate/internal/service"
	"tubegate/internal/storage"
	"tubegate/internal/strategy"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// Endpoints lists the public routes reported by /health
var Endpoints = []string{"/search", "/download", "/health", "/status"}

// SystemHandler serves health and diagnostic routes
type SystemHandler struct {
	rateLimitService *service.RateLimitService
	fetchService     *service.FetchService
	store            *storage.Manager
	catalog          *strategy.Catalog
	started          time.Time
	now              func() time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(rls *service.RateLimitService, fs *service.FetchService, store *storage.Manager, catalog *strategy.Catalog) *SystemHandler {
	return &SystemHandler{
		rateLimitService: rls,
		fetchService:     fs,
		store:            store,
		catalog:          catalog,
		started:          time.Now(),
		now:              time.Now,
	}
}

// HealthCheck handles GET /health
func (h *SystemHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC(),
		Endpoints: Endpoints,
	})
}

// Status handles GET /status
func (h *SystemHandler) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rl := h.rateLimitService.Config()
	search, download := h.catalog.Names()
	uptime := h.now().Sub(h.started)

	c.JSON(http.StatusOK, gin.H{
		"rate_limit": gin.H{
			"enabled":         rl.Enabled,
			"tracked_entries": h.rateLimitService.TrackedEntries(),
			"max_requests":    rl.MaxRequests,
			"window_ms":       rl.WindowMS,
		},
		"cookies": gin.H{
			"configured": h.fetchService.CookiesConfigured(),
			"count":      h.fetchService.CookieCount(),
		},
		"strategies": gin.H{
			"search":   search,
			"download": download,
		},
		"fetch":             h.fetchService.Stats(),
		"pending_deletions": h.store.PendingDeletions(),
		"uptime":            uptime.Round(time.Second).String(),
		"uptime_seconds":    int64(uptime.Seconds()),
		"started":           humanize.Time(h.started),
		"memory": gin.H{
			"alloc":       humanize.Bytes(mem.Alloc),
			"sys":         humanize.Bytes(mem.Sys),
			"heap_inuse":  humanize.Bytes(mem.HeapInuse),
			"alloc_bytes": mem.Alloc,
			"goroutines":  runtime.NumGoroutine(),
		},
	})
}

// NotFound handles unmatched routes
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Endpoint not found"})
}
