package handler

import (
	"fmt"

	"tubegate/internal/service"
	"tubegate/internal/storage"
	"tubegate/internal/strategy"
	"tubegate/pkg/logger"
	"tubegate/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Services bundles what the routes depend on
type Services struct {
	RateLimit *service.RateLimitService
	Fetch     *service.FetchService
	Store     *storage.Manager
	Catalog   *strategy.Catalog

	// TrustedProxies are the peers allowed to set X-Forwarded-For. With none,
	// clients are identified by their TCP peer address.
	TrustedProxies []string
}

// NewRouter registers every route and middleware on a fresh engine
func NewRouter(s Services) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(s.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(logger.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CORS())

	searchHandler := NewSearchHandler(s.Fetch)
	downloadHandler := NewDownloadHandler(s.Fetch, s.Store)
	systemHandler := NewSystemHandler(s.RateLimit, s.Fetch, s.Store, s.Catalog)

	// One admission window covers both fetch routes
	limited := router.Group("/", middleware.RateLimitMiddleware(s.RateLimit))
	{
		limited.GET("/search", searchHandler.Search)
		limited.GET("/download", downloadHandler.Download)
	}

	router.GET("/health", systemHandler.HealthCheck)
	router.GET("/status", systemHandler.Status)
	router.NoRoute(NotFound)

	return router, nil
}
