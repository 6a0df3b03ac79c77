package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tubegate/internal/model"
	"tubegate/internal/storage"
	"tubegate/internal/strategy"
	"tubegate/pkg/extractor"
	"tubegate/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ArtifactStore is the part of storage.Manager the orchestrator drives
type ArtifactStore interface {
	Exists(req model.DownloadRequest) bool
	Stage(req model.DownloadRequest) (*storage.Staging, error)
	Commit(st *storage.Staging) error
	CleanupPartial(st *storage.Staging)
	Discard(st *storage.Staging)
	MaterializeCookies(set model.CookieSet) (string, error)
	RemoveCookies(path string)
}

// FetchError is returned once every strategy of a request has failed.
// It unwraps to the sentinel of its Kind; Last is for logs only.
type FetchError struct {
	Kind     model.FailureKind
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s after %d attempts", e.Kind.Err(), e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Kind.Err()
}

// FetchStats is a snapshot of orchestrator counters
type FetchStats struct {
	CacheHits     int64            `json:"cache_hits"`
	SharedFetches int64            `json:"shared_fetches"`
	Exhausted     int64            `json:"exhausted"`
	Wins          map[string]int64 `json:"strategy_wins"`
}

// FetchService walks the strategy catalog until the extractor succeeds
type FetchService struct {
	runner       extractor.Runner
	catalog      *strategy.Catalog
	store        ArtifactStore
	cookies      model.CookieSet
	cookieHeader string
	backoff      time.Duration
	timeout      time.Duration
	searchLimit  int
	pacer        *rate.Limiter
	inflight     singleflight.Group

	statsMu sync.Mutex
	stats   FetchStats
}

// NewFetchService creates a new fetch orchestrator
func NewFetchService(runner extractor.Runner, catalog *strategy.Catalog, store ArtifactStore, cfg *model.FetchConfig, cookies model.CookieSet) *FetchService {
	s := &FetchService{
		runner:       runner,
		catalog:      catalog,
		store:        store,
		cookies:      cookies,
		cookieHeader: cookies.Header(),
		backoff:      time.Duration(cfg.StrategyBackoffMS) * time.Millisecond,
		timeout:      time.Duration(cfg.Timeout) * time.Second,
		searchLimit:  cfg.SearchLimit,
		stats:        FetchStats{Wins: make(map[string]int64)},
	}
	if s.searchLimit <= 0 {
		s.searchLimit = 10
	}
	if cfg.InvocationsPerSec > 0 {
		burst := cfg.InvocationBurst
		if burst < 1 {
			burst = 1
		}
		s.pacer = rate.NewLimiter(rate.Limit(cfg.InvocationsPerSec), burst)
	}
	return s
}

// Search runs the query through the primary and fallback strategies. A run
// that yields no parseable line counts as a failure.
func (s *FetchService) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	target := fmt.Sprintf("ytsearch%d:%s", s.searchLimit, query)
	strategies := s.catalog.Search()

	var lastErr error
	for i, strat := range strategies {
		out, err := s.invoke(ctx, extractor.Invocation{
			Target:       target,
			Strategy:     strat,
			CookieHeader: s.cookieHeader,
			Print:        searchPrintTemplate,
			FlatPlaylist: true,
		})
		if err == nil {
			results := ParseSearchOutput(out)
			if len(results) > 0 {
				s.recordWin("search/" + strat.Name)
				logger.Logger.Info("Search succeeded",
					zap.String("query", query),
					zap.String("strategy", strat.Name),
					zap.Int("results", len(results)))
				return results, nil
			}
			err = model.ErrNoResults
		}

		lastErr = err
		logger.Logger.Warn("Search strategy failed",
			zap.String("query", query),
			zap.String("strategy", strat.Name),
			zap.Error(err))

		if i < len(strategies)-1 {
			if err := s.wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, s.exhausted("search", query, len(strategies), lastErr)
}

// Download makes sure the artifact of req exists on disk. It reports cached
// when no extractor run was needed. Identical concurrent requests share one
// fetch.
func (s *FetchService) Download(ctx context.Context, req model.DownloadRequest) (cached bool, err error) {
	if s.store.Exists(req) {
		s.statsMu.Lock()
		s.stats.CacheHits++
		s.statsMu.Unlock()
		logger.Logger.Info("Serving cached artifact", zap.String("file", req.Filename()))
		return true, nil
	}

	_, err, shared := s.inflight.Do(req.Filename(), func() (interface{}, error) {
		if s.store.Exists(req) {
			return nil, nil
		}
		return nil, s.fetch(ctx, req)
	})
	if shared {
		s.statsMu.Lock()
		s.stats.SharedFetches++
		s.statsMu.Unlock()
	}
	return false, err
}

func (s *FetchService) fetch(ctx context.Context, req model.DownloadRequest) error {
	jar, err := s.store.MaterializeCookies(s.cookies)
	if err != nil {
		logger.Logger.Warn("Continuing without cookie jar", zap.Error(err))
		jar = ""
	}
	defer s.store.RemoveCookies(jar)

	st, err := s.store.Stage(req)
	if err != nil {
		logger.Logger.Error("Failed to stage download", zap.Error(err))
		return &FetchError{Kind: model.FailureGeneric, Last: err}
	}
	defer s.store.Discard(st)

	strategies := s.catalog.Download(req.Kind)
	var lastErr error
	for i, strat := range strategies {
		_, err := s.invoke(ctx, extractor.Invocation{
			Target:       req.WatchURL(),
			Strategy:     strat,
			CookieHeader: s.cookieHeader,
			CookieFile:   jar,
			Output:       st.OutputTemplate,
		})
		if err == nil {
			err = s.store.Commit(st)
		}
		if err == nil {
			s.recordWin("download/" + strat.Name)
			logger.Logger.Info("Download succeeded",
				zap.String("file", req.Filename()),
				zap.String("strategy", strat.Name),
				zap.Int("attempt", i+1))
			return nil
		}

		lastErr = err
		logger.Logger.Warn("Download strategy failed",
			zap.String("file", req.Filename()),
			zap.String("strategy", strat.Name),
			zap.Bool("no_artifact", errors.Is(err, model.ErrArtifactNotProduced)),
			zap.Error(err))
		s.store.CleanupPartial(st)

		if i < len(strategies)-1 {
			if err := s.wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
	}

	return s.exhausted("download", req.Filename(), len(strategies), lastErr)
}

func (s *FetchService) invoke(ctx context.Context, inv extractor.Invocation) (string, error) {
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for invocation slot: %w", err)
		}
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.runner.Run(runCtx, inv)
	logger.Logger.Debug("Extractor finished",
		zap.String("strategy", inv.Strategy.Name),
		zap.String("target", inv.Target),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil))
	return out, err
}

// wait sleeps for the inter-strategy backoff
func (s *FetchService) wait(ctx context.Context) error {
	if s.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *FetchService) exhausted(op, subject string, attempts int, lastErr error) error {
	kind := ClassifyFailure(lastErr)

	s.statsMu.Lock()
	s.stats.Exhausted++
	s.statsMu.Unlock()

	logger.Logger.Error("All strategies exhausted",
		zap.String("op", op),
		zap.String("subject", subject),
		zap.Int("attempts", attempts),
		zap.String("classified", kind.String()),
		zap.Error(lastErr))
	return &FetchError{Kind: kind, Attempts: attempts, Last: lastErr}
}

func (s *FetchService) recordWin(name string) {
	s.statsMu.Lock()
	s.stats.Wins[name]++
	s.statsMu.Unlock()
}

// Stats returns a copy of the orchestrator counters
func (s *FetchService) Stats() FetchStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := s.stats
	out.Wins = make(map[string]int64, len(s.stats.Wins))
	for k, v := range s.stats.Wins {
		out.Wins[k] = v
	}
	return out
}

// CookiesConfigured reports whether credential material is available
func (s *FetchService) CookiesConfigured() bool {
	return s.cookies.Configured()
}

// CookieCount returns the number of populated cookies
func (s *FetchService) CookieCount() int {
	return len(s.cookies.Populated())
}
