package service

import (
	"sync"
	"time"

	"tubegate/internal/model"
	"tubegate/pkg/logger"

	"go.uber.org/zap"
)

// RateLimitService admits requests per client identity over a sliding window.
// The same window covers every rate limited endpoint.
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	window   time.Duration
	windows  map[string][]time.Time
	mu       sync.Mutex
	now      func() time.Time
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		window:   time.Duration(cfg.WindowMS) * time.Millisecond,
		windows:  make(map[string][]time.Time),
		now:      time.Now,
		quitChan: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

// Admit records a request from ip and reports whether it may proceed.
// A rejected attempt is not recorded.
func (rls *RateLimitService) Admit(ip string) bool {
	if !rls.cfg.Enabled {
		return true
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	stamps, exists := rls.windows[ip]
	if !exists && rls.cfg.MaxEntries > 0 && len(rls.windows) >= rls.cfg.MaxEntries {
		rls.sweepLocked(now)
	}

	stamps = prune(stamps, now.Add(-rls.window))
	if len(stamps) >= rls.cfg.MaxRequests {
		rls.windows[ip] = stamps
		logger.Logger.Warn("Rate limit exceeded",
			zap.String("ip", ip),
			zap.Int("requests", len(stamps)),
			zap.Int("limit", rls.cfg.MaxRequests))
		return false
	}

	rls.windows[ip] = append(stamps, now)
	return true
}

// Remaining returns how many admissions ip has left in the current window,
// or -1 when limiting is disabled
func (rls *RateLimitService) Remaining(ip string) int {
	if !rls.cfg.Enabled {
		return -1
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	live := countLive(rls.windows[ip], rls.now().Add(-rls.window))
	remaining := rls.cfg.MaxRequests - live
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RetryAfter returns the time until the oldest admission of ip leaves the window
func (rls *RateLimitService) RetryAfter(ip string) time.Duration {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	stamps := rls.windows[ip]
	start := now.Add(-rls.window)
	for _, ts := range stamps {
		if ts.After(start) {
			return ts.Sub(start)
		}
	}
	return 0
}

// TrackedEntries returns the number of identities currently held
func (rls *RateLimitService) TrackedEntries() int {
	rls.mu.Lock()
	defer rls.mu.Unlock()
	return len(rls.windows)
}

// Config returns the limiter configuration
func (rls *RateLimitService) Config() model.RateLimitConfig {
	return *rls.cfg
}

// Reset forgets the window of ip (admin operation)
func (rls *RateLimitService) Reset(ip string) {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	delete(rls.windows, ip)
	logger.Logger.Info("Rate limit reset for IP", zap.String("ip", ip))
}

// cleanupRoutine periodically evicts identities with an empty window
func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(rls.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup()
		}
	}
}

func (rls *RateLimitService) cleanup() {
	rls.mu.Lock()
	defer rls.mu.Unlock()
	rls.sweepLocked(rls.now())
}

func (rls *RateLimitService) sweepLocked(now time.Time) {
	start := now.Add(-rls.window)
	removed := 0
	for ip, stamps := range rls.windows {
		if countLive(stamps, start) == 0 {
			delete(rls.windows, ip)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rls.windows)))
	}
}

// Stop stops the rate limit service
func (rls *RateLimitService) Stop() {
	rls.stopOnce.Do(func() { close(rls.quitChan) })
}

// prune drops timestamps at or before start. Stamps are appended in order,
// so everything after the first live entry is live too.
func prune(stamps []time.Time, start time.Time) []time.Time {
	for i, ts := range stamps {
		if ts.After(start) {
			return stamps[i:]
		}
	}
	return stamps[:0]
}

func countLive(stamps []time.Time, start time.Time) int {
	return len(prune(stamps, start))
}
