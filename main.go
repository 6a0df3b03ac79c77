package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tubegate/config"
	"tubegate/internal/handler"
	"tubegate/internal/service"
	"tubegate/internal/storage"
	"tubegate/internal/strategy"
	"tubegate/pkg/extractor"
	"tubegate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting media gateway",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// Initialize storage manager
	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureDirs(); err != nil {
		logger.Logger.Fatal("Failed to create storage directories", zap.Error(err))
	}
	storageManager.Start()
	defer storageManager.Stop()

	// Strategy catalog
	catalog, err := loadCatalog(cfg.Fetch.StrategyFile)
	if err != nil {
		logger.Logger.Fatal("Failed to load strategy catalog", zap.Error(err))
	}
	searchNames, downloadNames := catalog.Names()
	logger.Logger.Info("Strategy catalog loaded",
		zap.Strings("search", searchNames),
		zap.Strings("download", downloadNames))

	// Initialize services
	cookies := cfg.Cookies.CookieSet()
	if cookies.Configured() {
		logger.Logger.Info("Session cookies configured", zap.Int("count", len(cookies.Populated())))
	} else {
		logger.Logger.Warn("No session cookies configured, running anonymously")
	}

	fetchService := service.NewFetchService(
		extractor.New(cfg.Fetch.Executable),
		catalog,
		storageManager,
		&cfg.Fetch,
		cookies,
	)

	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()
	if cfg.RateLimit.Enabled {
		logger.Logger.Info("Rate limiting enabled",
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
			zap.Int("window_ms", cfg.RateLimit.WindowMS))
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router, err := handler.NewRouter(handler.Services{
		RateLimit:      rateLimitService,
		Fetch:          fetchService,
		Store:          storageManager,
		Catalog:        catalog,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to build router", zap.Error(err))
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.WriteTimeout(cfg, len(downloadNames)),
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Logger.Info("Server listening",
			zap.String("address", srv.Addr),
			zap.Duration("write_timeout", srv.WriteTimeout))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}

func loadCatalog(path string) (*strategy.Catalog, error) {
	if path == "" {
		return strategy.Default()
	}
	return strategy.Load(path)
}
