package logger

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubegate/internal/model"

	"github.com/gin-gonic/gin"
)

func TestInit_WritesFile(t *testing.T) {
	orig := Logger
	defer func() { Logger = orig }()

	path := filepath.Join(t.TempDir(), "nested", "app.log")
	if err := Init(&model.LoggingConfig{Level: "debug", FilePath: path}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Logger.Info("hello from test")
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestInit_BadLevelFallsBack(t *testing.T) {
	orig := Logger
	defer func() { Logger = orig }()

	if err := Init(&model.LoggingConfig{Level: "loud"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !Logger.Core().Enabled(0) {
		t.Error("info level should be enabled after fallback")
	}
}

func TestRecovery_ReturnsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Internal server error") {
		t.Errorf("body = %q", w.Body.String())
	}
}
