package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tubegate/internal/model"
	"tubegate/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	partialDirName = ".partial"
	cookiePrefix   = "cookies-"
	cookieTTL      = 365 * 24 * time.Hour
)

// Manager owns the lifecycle of downloaded artifacts and per-request scratch
// files. Nothing else creates or removes them.
type Manager struct {
	cfg         *model.StorageConfig
	deleteDelay time.Duration
	pending     map[string]*time.Timer
	mu          sync.Mutex
	quitChan    chan struct{}
	stopOnce    sync.Once
}

// Staging is the private output location of one fetch attempt sequence
type Staging struct {
	Request        model.DownloadRequest
	Dir            string
	OutputTemplate string // handed to the extractor
	Expected       string // file the extractor must produce
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:         cfg,
		deleteDelay: time.Duration(cfg.ServeDeleteDelay) * time.Second,
		pending:     make(map[string]*time.Timer),
		quitChan:    make(chan struct{}),
	}
}

// EnsureDirs creates the download and scratch directories
func (m *Manager) EnsureDirs() error {
	for _, dir := range []string{m.cfg.DownloadDir, m.partialRoot(), m.cfg.ScratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Start starts the orphan sweep routine
func (m *Manager) Start() {
	if m.cfg.CleanupInterval > 0 {
		go m.cleanupRoutine()
	}
}

// Stop stops the sweep routine and cancels nothing already scheduled
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.quitChan) })
}

// Path returns the deterministic servable path of req
func (m *Manager) Path(req model.DownloadRequest) string {
	return filepath.Join(m.cfg.DownloadDir, req.Filename())
}

// Exists reports whether a complete artifact is present for req
func (m *Manager) Exists(req model.DownloadRequest) bool {
	info, err := os.Stat(m.Path(req))
	return err == nil && info.Mode().IsRegular()
}

// Open opens the artifact of req for streaming
func (m *Manager) Open(req model.DownloadRequest) (*os.File, int64, error) {
	f, err := os.Open(m.Path(req))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, model.ErrArtifactNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Stage prepares a uniquely named directory for one request's extractor output
func (m *Manager) Stage(req model.DownloadRequest) (*Staging, error) {
	dir := filepath.Join(m.partialRoot(), uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Staging{
		Request:        req,
		Dir:            dir,
		OutputTemplate: filepath.Join(dir, req.VideoID+".%(ext)s"),
		Expected:       filepath.Join(dir, req.Filename()),
	}, nil
}

// Commit moves the staged file to its servable path and stamps it with the
// current time. A missing staged file yields model.ErrArtifactNotProduced.
func (m *Manager) Commit(st *Staging) error {
	info, err := os.Stat(st.Expected)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return model.ErrArtifactNotProduced
	}
	if err := os.Rename(st.Expected, m.Path(st.Request)); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	// The orphan sweep ages artifacts from commit time.
	now := time.Now()
	if err := os.Chtimes(m.Path(st.Request), now, now); err != nil {
		logger.Logger.Warn("Failed to stamp artifact", zap.String("path", m.Path(st.Request)), zap.Error(err))
	}
	m.removeDir(st.Dir)
	logger.Logger.Info("Artifact stored", zap.String("path", m.Path(st.Request)), zap.Int64("size", info.Size()))
	return nil
}

// CleanupPartial synchronously removes everything a failed attempt left
// behind and recreates the empty staging directory for the next attempt.
// Failures are logged only.
func (m *Manager) CleanupPartial(st *Staging) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Logger.Error("Failed to read staging dir", zap.String("dir", st.Dir), zap.Error(err))
		}
		return
	}
	for _, e := range entries {
		p := filepath.Join(st.Dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			logger.Logger.Error("Failed to clean up partial file", zap.String("path", p), zap.Error(err))
			continue
		}
		logger.Logger.Info("Cleaned up partial file", zap.String("path", p))
	}
}

// Discard removes the staging directory once a request is finished with it
func (m *Manager) Discard(st *Staging) {
	m.removeDir(st.Dir)
}

// FinalizeAfterServe schedules deletion of the artifact after the configured
// delay. Only the first call for a path schedules anything.
func (m *Manager) FinalizeAfterServe(req model.DownloadRequest) {
	path := m.Path(req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, scheduled := m.pending[path]; scheduled {
		return
	}
	m.pending[path] = time.AfterFunc(m.deleteDelay, func() {
		m.mu.Lock()
		delete(m.pending, path)
		m.mu.Unlock()

		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Logger.Error("Failed to delete served file", zap.String("path", path), zap.Error(err))
			}
			return
		}
		logger.Logger.Info("Cleaned up served file", zap.String("path", path))
	})
}

// PendingDeletions returns the number of scheduled post-serve deletions
func (m *Manager) PendingDeletions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// MaterializeCookies writes set as a private cookies.txt jar and returns its
// path. It returns "" when set carries no values.
func (m *Manager) MaterializeCookies(set model.CookieSet) (string, error) {
	if !set.Configured() {
		return "", nil
	}
	path := filepath.Join(m.cfg.ScratchDir, cookiePrefix+uuid.NewString()+".txt")
	if err := os.WriteFile(path, []byte(set.NetscapeJar(time.Now().Add(cookieTTL))), 0600); err != nil {
		return "", fmt.Errorf("write cookie jar: %w", err)
	}
	return path, nil
}

// RemoveCookies deletes a jar created by MaterializeCookies
func (m *Manager) RemoveCookies(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Logger.Error("Failed to remove cookie jar", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) partialRoot() string {
	return filepath.Join(m.cfg.DownloadDir, partialDirName)
}

func (m *Manager) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Logger.Error("Failed to remove staging dir", zap.String("dir", dir), zap.Error(err))
	}
}

// cleanupRoutine periodically removes orphaned files
func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(m.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	logger.Logger.Info("Storage cleanup routine started",
		zap.Int("cleanup_interval_seconds", m.cfg.CleanupInterval),
		zap.Int("file_ttl_seconds", m.cfg.FileTTLSeconds))

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.sweepOrphans(time.Now())
		}
	}
}

// sweepOrphans removes staging dirs, cookie jars and never-served artifacts
// older than the file TTL. Artifacts with a pending deletion are left alone.
func (m *Manager) sweepOrphans(now time.Time) int {
	cutoff := now.Add(-time.Duration(m.cfg.FileTTLSeconds) * time.Second)
	removed := 0

	m.mu.Lock()
	pending := make(map[string]bool, len(m.pending))
	for p := range m.pending {
		pending[p] = true
	}
	m.mu.Unlock()

	sweep := func(dir string, match func(os.DirEntry) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !match(e) {
				continue
			}
			p := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) || pending[p] {
				continue
			}
			if err := os.RemoveAll(p); err != nil {
				logger.Logger.Error("Failed to remove orphan", zap.String("path", p), zap.Error(err))
				continue
			}
			removed++
		}
	}

	sweep(m.partialRoot(), func(e os.DirEntry) bool { return e.IsDir() })
	sweep(m.cfg.ScratchDir, func(e os.DirEntry) bool {
		return !e.IsDir() && strings.HasPrefix(e.Name(), cookiePrefix)
	})
	sweep(m.cfg.DownloadDir, func(e os.DirEntry) bool {
		ext := filepath.Ext(e.Name())
		return !e.IsDir() && (ext == ".mp3" || ext == ".mp4")
	})

	if removed > 0 {
		logger.Logger.Info("Storage cleanup completed", zap.Int("deleted_count", removed))
	}
	return removed
}
