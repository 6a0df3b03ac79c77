package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"tubegate/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load loads configuration from environment variables
func Load() (*model.Config, error) {
	godotenv.Load()

	cfg := &model.Config{
		Server: model.ServerConfig{
			Port:           getEnvInt("PORT", getEnvInt("SERVER_PORT", 5000)),
			Host:           getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout:        getEnvInt("SERVER_TIMEOUT", 600),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		Storage: model.StorageConfig{
			DownloadDir:      getEnvStr("DOWNLOAD_DIR", "./downloads"),
			ScratchDir:       getEnvStr("SCRATCH_DIR", "./downloads/.scratch"),
			ServeDeleteDelay: getEnvInt("SERVE_DELETE_DELAY_SECONDS", 10),
			CleanupInterval:  getEnvInt("STORAGE_CLEANUP_INTERVAL", 600),
			FileTTLSeconds:   getEnvInt("FILE_TTL_SECONDS", 3600),
		},
		Logging: model.LoggingConfig{
			Level:    getEnvStr("LOG_LEVEL", "info"),
			FilePath: getEnvStr("LOG_FILE", "./log/app.log"),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:         getEnvBool("RATELIMIT_ENABLED", true),
			MaxRequests:     getEnvInt("RATELIMIT_MAX_REQUESTS", 10),
			WindowMS:        getEnvInt("RATELIMIT_WINDOW_MS", 60000),
			CleanupInterval: getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 300),
			MaxEntries:      getEnvInt("RATELIMIT_MAX_ENTRIES", 10000),
		},
		Fetch: model.FetchConfig{
			Executable:        getEnvStr("YTDLP_PATH", ""),
			Timeout:           getEnvInt("FETCH_TIMEOUT", 300),
			StrategyBackoffMS: getEnvInt("STRATEGY_BACKOFF_MS", 2000),
			InvocationsPerSec: getEnvFloat("FETCH_INVOCATIONS_PER_SECOND", 2),
			InvocationBurst:   getEnvInt("FETCH_INVOCATION_BURST", 4),
			SearchLimit:       getEnvInt("SEARCH_LIMIT", 10),
			StrategyFile:      getEnvStr("STRATEGY_FILE", ""),
		},
	}

	if err := envconfig.Process("", &cfg.Cookies); err != nil {
		return nil, fmt.Errorf("process cookie environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with
func Validate(cfg *model.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	for _, p := range cfg.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", p)
			}
		}
	}
	if strings.TrimSpace(cfg.Storage.DownloadDir) == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.MaxRequests <= 0 || cfg.RateLimit.WindowMS <= 0) {
		return fmt.Errorf("rate limit requires positive RATELIMIT_MAX_REQUESTS and RATELIMIT_WINDOW_MS")
	}
	if cfg.Fetch.SearchLimit <= 0 || cfg.Fetch.SearchLimit > 50 {
		return fmt.Errorf("SEARCH_LIMIT must be between 1 and 50")
	}
	if cfg.Server.Timeout < 0 || cfg.Fetch.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.Storage.ServeDeleteDelay < 0 || cfg.Fetch.StrategyBackoffMS < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// WriteTimeout returns the HTTP write deadline. A download may run every
// strategy to its fetch timeout, with backoff in between, before streaming
// starts; SERVER_TIMEOUT is the streaming allowance on top. Zero means no
// deadline, which is what an unbounded fetch timeout implies.
func WriteTimeout(cfg *model.Config, downloadStrategies int) time.Duration {
	if cfg.Fetch.Timeout <= 0 || cfg.Server.Timeout <= 0 {
		return 0
	}
	if downloadStrategies < 1 {
		downloadStrategies = 1
	}
	n := time.Duration(downloadStrategies)
	fetch := n * time.Duration(cfg.Fetch.Timeout) * time.Second
	backoff := (n - 1) * time.Duration(cfg.Fetch.StrategyBackoffMS) * time.Millisecond
	return fetch + backoff + time.Duration(cfg.Server.Timeout)*time.Second
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	valStr := getEnvStr(key, "")
	if val, err := strconv.ParseFloat(valStr, 64); err == nil {
		return val
	}
	return defaultVal
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnvStr(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
