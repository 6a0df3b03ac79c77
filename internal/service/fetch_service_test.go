package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tubegate/internal/model"
	"tubegate/internal/storage"
	"tubegate/internal/strategy"
	"tubegate/pkg/extractor"
)

// outcome is what the fake extractor does for one strategy
type outcome struct {
	fail    string // error message, empty means success
	noFile  bool   // succeed without producing the artifact
	partial bool   // leave a .part file behind before failing
	stdout  string
}

type fakeRunner struct {
	mu       sync.Mutex
	outcomes map[string]outcome
	calls    []extractor.Invocation
	delay    time.Duration
}

func newFakeRunner(outcomes map[string]outcome) *fakeRunner {
	return &fakeRunner{outcomes: outcomes}
}

func (r *fakeRunner) Run(ctx context.Context, inv extractor.Invocation) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	o := r.outcomes[inv.Strategy.Name]
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	if o.partial && inv.Output != "" {
		os.WriteFile(strings.Replace(inv.Output, "%(ext)s", "f137.mp4.part", 1), []byte("x"), 0644)
	}
	if o.fail != "" {
		return "", &extractor.ToolError{Strategy: inv.Strategy.Name, ExitCode: 1, Message: o.fail}
	}
	if inv.Output != "" && !o.noFile {
		ext := "mp4"
		if inv.Strategy.Media != nil && inv.Strategy.Media.ExtractAudio {
			ext = "mp3"
		}
		if err := os.WriteFile(strings.Replace(inv.Output, "%(ext)s", ext, 1), []byte("media"), 0644); err != nil {
			return "", err
		}
	}
	return o.stdout, nil
}

func (r *fakeRunner) Calls() []extractor.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]extractor.Invocation(nil), r.calls...)
}

// countingStore records cleanups on top of a real manager
type countingStore struct {
	*storage.Manager
	cleanups int32
	jars     []string
	mu       sync.Mutex
}

func (s *countingStore) CleanupPartial(st *storage.Staging) {
	atomic.AddInt32(&s.cleanups, 1)
	s.Manager.CleanupPartial(st)
}

func (s *countingStore) MaterializeCookies(set model.CookieSet) (string, error) {
	p, err := s.Manager.MaterializeCookies(set)
	s.mu.Lock()
	s.jars = append(s.jars, p)
	s.mu.Unlock()
	return p, err
}

func newTestStore(t *testing.T) *countingStore {
	t.Helper()
	root := t.TempDir()
	m := storage.NewManager(&model.StorageConfig{
		DownloadDir: filepath.Join(root, "downloads"),
		ScratchDir:  filepath.Join(root, "scratch"),
	})
	if err := m.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	return &countingStore{Manager: m}
}

func newTestFetchService(t *testing.T, runner extractor.Runner, store ArtifactStore, cookies model.CookieSet) *FetchService {
	t.Helper()
	catalog, err := strategy.Default()
	if err != nil {
		t.Fatalf("strategy.Default() error = %v", err)
	}
	return NewFetchService(runner, catalog, store, &model.FetchConfig{SearchLimit: 5}, cookies)
}

var audioReq = model.DownloadRequest{VideoID: "dQw4w9WgXcQ", Kind: model.KindAudio}

func TestDownload_CacheHitSkipsExtractor(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(nil)
	svc := newTestFetchService(t, runner, store, nil)

	os.WriteFile(store.Path(audioReq), []byte("cached"), 0644)

	cached, err := svc.Download(context.Background(), audioReq)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !cached {
		t.Error("Download() should report a cache hit")
	}
	if n := len(runner.Calls()); n != 0 {
		t.Errorf("extractor invoked %d times on a cache hit", n)
	}
	if got := svc.Stats().CacheHits; got != 1 {
		t.Errorf("CacheHits = %d, want 1", got)
	}
}

func TestDownload_FirstStrategySucceeds(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(nil)
	svc := newTestFetchService(t, runner, store, nil)

	cached, err := svc.Download(context.Background(), audioReq)
	if err != nil || cached {
		t.Fatalf("Download() = %v, %v", cached, err)
	}
	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Strategy.Name != "standard" {
		t.Fatalf("calls = %d, want one standard attempt", len(calls))
	}
	if calls[0].Target != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("Target = %q", calls[0].Target)
	}
	if !store.Exists(audioReq) {
		t.Error("artifact should be stored")
	}
	if store.cleanups != 0 {
		t.Errorf("cleanups = %d, want 0", store.cleanups)
	}
}

func TestDownload_FallsThroughStrategies(t *testing.T) {
	for failures := 1; failures <= 3; failures++ {
		store := newTestStore(t)
		names := []string{"standard", "minimal", "mobile", "alternate-frontend"}
		outcomes := make(map[string]outcome)
		for _, n := range names[:failures] {
			outcomes[n] = outcome{fail: "ERROR: Video unavailable", partial: true}
		}
		runner := newFakeRunner(outcomes)
		svc := newTestFetchService(t, runner, store, nil)

		req := model.DownloadRequest{VideoID: "dQw4w9WgXcQ", Kind: model.KindVideo}
		if _, err := svc.Download(context.Background(), req); err != nil {
			t.Fatalf("failures=%d: Download() error = %v", failures, err)
		}

		calls := runner.Calls()
		if len(calls) != failures+1 {
			t.Fatalf("failures=%d: %d invocations, want %d", failures, len(calls), failures+1)
		}
		winner := calls[failures].Strategy
		if winner.Name != names[failures] {
			t.Errorf("failures=%d: winner = %s, want %s", failures, winner.Name, names[failures])
		}
		if winner.Media == nil || winner.Media.MergeOutputFormat != "mp4" {
			t.Errorf("failures=%d: winner media = %+v", failures, winner.Media)
		}
		if got := int(store.cleanups); got != failures {
			t.Errorf("failures=%d: cleanups = %d", failures, got)
		}
		if got := svc.Stats().Wins["download/"+names[failures]]; got != 1 {
			t.Errorf("failures=%d: win not recorded", failures)
		}
		if !store.Exists(req) {
			t.Errorf("failures=%d: artifact missing", failures)
		}
	}
}

func TestDownload_MissingArtifactIsFailure(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(map[string]outcome{"standard": {noFile: true}})
	svc := newTestFetchService(t, runner, store, nil)

	if _, err := svc.Download(context.Background(), audioReq); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 2 || calls[1].Strategy.Name != "minimal" {
		t.Errorf("exit 0 without a file should fall through, calls = %d", len(calls))
	}
}

func TestDownload_ExhaustionIsClassified(t *testing.T) {
	tests := []struct {
		name string
		last string
		want error
	}{
		{"throttled", "ERROR: HTTP Error 429: Too Many Requests", model.ErrUpstreamThrottled},
		{"auth", "ERROR: Sign in to confirm you're not a bot", model.ErrUpstreamAuthRequired},
		{"generic", "ERROR: Video unavailable", model.ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			runner := newFakeRunner(map[string]outcome{
				"standard":           {fail: "ERROR: HTTP Error 403"},
				"minimal":            {fail: "ERROR: HTTP Error 403"},
				"mobile":             {fail: "ERROR: HTTP Error 403"},
				"alternate-frontend": {fail: tt.last},
			})
			svc := newTestFetchService(t, runner, store, nil)

			_, err := svc.Download(context.Background(), audioReq)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Download() error = %v, want %v", err, tt.want)
			}
			var fe *FetchError
			if !errors.As(err, &fe) || fe.Attempts != 4 {
				t.Errorf("FetchError = %+v", fe)
			}
			if store.Exists(audioReq) {
				t.Error("nothing should be servable after exhaustion")
			}
			if got := store.cleanups; got != 4 {
				t.Errorf("cleanups = %d, want 4", got)
			}
			if got := svc.Stats().Exhausted; got != 1 {
				t.Errorf("Exhausted = %d, want 1", got)
			}
		})
	}
}

func TestDownload_CookieJarIsPerRequest(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(nil)
	cookies := model.CookieSet{{Name: "SID", Value: "abc"}, {Name: "HSID", Value: "def"}}
	svc := newTestFetchService(t, runner, store, cookies)

	if _, err := svc.Download(context.Background(), audioReq); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	calls := runner.Calls()
	if calls[0].CookieFile == "" {
		t.Fatal("jar strategy should receive a cookie file")
	}
	if calls[0].CookieHeader != "SID=abc; HSID=def" {
		t.Errorf("CookieHeader = %q", calls[0].CookieHeader)
	}
	if len(store.jars) != 1 || store.jars[0] != calls[0].CookieFile {
		t.Errorf("jars = %v", store.jars)
	}
	if _, err := os.Stat(calls[0].CookieFile); !os.IsNotExist(err) {
		t.Error("cookie jar should be removed after the request")
	}
}

func TestDownload_AnonymousHasNoJar(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(nil)
	svc := newTestFetchService(t, runner, store, model.CookieSet{{Name: "SID", Value: ""}})

	if _, err := svc.Download(context.Background(), audioReq); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got := runner.Calls()[0].CookieFile; got != "" {
		t.Errorf("CookieFile = %q, want none", got)
	}
	if svc.CookiesConfigured() || svc.CookieCount() != 0 {
		t.Error("empty cookie values should count as anonymous")
	}
}

func TestDownload_ConcurrentRequestsShareFetch(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(nil)
	runner.delay = 100 * time.Millisecond
	svc := newTestFetchService(t, runner, store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Download(context.Background(), audioReq)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if n := len(runner.Calls()); n != 1 {
		t.Errorf("extractor invoked %d times, want 1", n)
	}
	if !store.Exists(audioReq) {
		t.Error("artifact should be stored")
	}
}

func TestDownload_CancelledBetweenStrategies(t *testing.T) {
	store := newTestStore(t)
	runner := newFakeRunner(map[string]outcome{"standard": {fail: "ERROR: 403"}})
	svc := newTestFetchService(t, runner, store, nil)
	svc.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Download(ctx, audioReq)
	if !errors.Is(err, model.ErrUpstreamFailure) {
		t.Fatalf("Download() error = %v", err)
	}
	if n := len(runner.Calls()); n != 1 {
		t.Errorf("invocations = %d, want 1", n)
	}
}

func TestSearch_PrimarySucceeds(t *testing.T) {
	runner := newFakeRunner(map[string]outcome{
		"primary": {stdout: "abc12345678|My Title|3:45|http://thumb\n"},
	})
	svc := newTestFetchService(t, runner, newTestStore(t), model.CookieSet{{Name: "SID", Value: "x"}})

	results, err := svc.Search(context.Background(), "never gonna")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "abc12345678" || results[0].Title != "My Title" {
		t.Errorf("results = %+v", results)
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Target != "ytsearch5:never gonna" || !calls[0].FlatPlaylist {
		t.Errorf("invocation = %+v", calls[0])
	}
	if calls[0].CookieHeader != "SID=x" {
		t.Errorf("CookieHeader = %q", calls[0].CookieHeader)
	}
}

func TestSearch_FallbackOnEmptyResult(t *testing.T) {
	runner := newFakeRunner(map[string]outcome{
		"primary":  {stdout: "NA|NA|NA|NA\n"},
		"fallback": {stdout: "abc12345678|Found|1:00|http://t\n"},
	})
	svc := newTestFetchService(t, runner, newTestStore(t), nil)

	results, err := svc.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Title != "Found" {
		t.Errorf("results = %+v", results)
	}
	if calls := runner.Calls(); len(calls) != 2 || calls[1].Strategy.Name != "fallback" {
		t.Errorf("fallback not used")
	}
}

func TestSearch_FallbackOnError(t *testing.T) {
	runner := newFakeRunner(map[string]outcome{
		"primary":  {fail: "ERROR: HTTP Error 403"},
		"fallback": {stdout: "abc12345678|Found|1:00|http://t\n"},
	})
	svc := newTestFetchService(t, runner, newTestStore(t), nil)

	if _, err := svc.Search(context.Background(), "q"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := svc.Stats().Wins["search/fallback"]; got != 1 {
		t.Errorf("fallback win = %d", got)
	}
}

func TestSearch_BothFail(t *testing.T) {
	runner := newFakeRunner(map[string]outcome{
		"primary":  {fail: "ERROR: Sign in to confirm you're not a bot"},
		"fallback": {fail: "ERROR: HTTP Error 429: Too Many Requests"},
	})
	svc := newTestFetchService(t, runner, newTestStore(t), nil)

	_, err := svc.Search(context.Background(), "q")
	if !errors.Is(err, model.ErrUpstreamThrottled) {
		t.Errorf("Search() error = %v, want throttled", err)
	}
}

func TestSearch_EmptyEverywhere(t *testing.T) {
	svc := newTestFetchService(t, newFakeRunner(nil), newTestStore(t), nil)

	_, err := svc.Search(context.Background(), "q")
	if !errors.Is(err, model.ErrUpstreamFailure) {
		t.Errorf("Search() error = %v, want generic failure", err)
	}
}
