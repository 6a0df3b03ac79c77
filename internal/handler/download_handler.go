package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"tubegate/internal/model"
	"tubegate/internal/service"
	"tubegate/pkg/logger"
	"tubegate/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArtifactServer is the part of storage.Manager used to stream artifacts
type ArtifactServer interface {
	Open(req model.DownloadRequest) (*os.File, int64, error)
	FinalizeAfterServe(req model.DownloadRequest)
}

// DownloadHandler handles download-related requests
type DownloadHandler struct {
	fetchService *service.FetchService
	store        ArtifactServer
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(fs *service.FetchService, store ArtifactServer) *DownloadHandler {
	return &DownloadHandler{
		fetchService: fs,
		store:        store,
	}
}

// Download handles GET /download?id=&type=mp3|mp4
func (h *DownloadHandler) Download(c *gin.Context) {
	id := c.Query("id")
	kind, ok := model.ParseMediaKind(c.Query("type"))
	if id == "" || !ok {
		logger.Logger.Warn("Invalid download request", zap.String("id", id), zap.String("type", c.Query("type")))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Missing or invalid parameters"})
		return
	}

	if !validator.ValidateVideoID(id) {
		logger.Logger.Warn("Invalid video ID", zap.String("id", id))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid video ID format"})
		return
	}

	req := model.DownloadRequest{VideoID: id, Kind: kind}

	// Tool runs are not tied to the client connection.
	ctx := context.WithoutCancel(c.Request.Context())
	file, size, cached, err := h.obtain(ctx, req)
	if err != nil {
		g := guidanceFor(err)
		logger.Logger.Error("Download failed", zap.String("file", req.Filename()), zap.Error(err))
		c.JSON(g.status, model.ErrorResponse{
			Error:     "Download failed",
			Code:      g.status,
			Note:      g.note,
			Solutions: g.solutions,
		})
		return
	}
	defer file.Close()

	c.Header("Content-Type", kind.ContentType())
	c.Header("Content-Disposition", buildContentDispositionHeader(req.Filename()))
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Status(http.StatusOK)

	written, err := io.Copy(c.Writer, file)
	if err != nil {
		// Headers are gone, nothing more can be told to the client.
		logger.Logger.Error("File download error",
			zap.String("file", req.Filename()),
			zap.Int64("written", written),
			zap.Error(err))
		return
	}

	logger.Logger.Info("File downloaded by user",
		zap.String("file", req.Filename()),
		zap.Bool("cached", cached),
		zap.Int64("size", written))
	h.store.FinalizeAfterServe(req)
}

// obtain fetches req if needed and opens it for streaming. A cached file can
// be removed by its post-serve deletion between the cache check and Open; that
// is treated as a miss and fetched once more.
func (h *DownloadHandler) obtain(ctx context.Context, req model.DownloadRequest) (*os.File, int64, bool, error) {
	for attempt := 0; ; attempt++ {
		cached, err := h.fetchService.Download(ctx, req)
		if err != nil {
			return nil, 0, false, err
		}

		file, size, err := h.store.Open(req)
		if err == nil {
			return file, size, cached, nil
		}
		if !errors.Is(err, model.ErrArtifactNotFound) || attempt > 0 {
			return nil, 0, false, fmt.Errorf("open stored file: %w", err)
		}
		logger.Logger.Warn("Stored file vanished before streaming, fetching again", zap.String("file", req.Filename()))
	}
}

// buildContentDispositionHeader builds a proper Content-Disposition header
// with RFC 5987 encoding for unicode and special characters
func buildContentDispositionHeader(filename string) string {
	needsEncoding := false
	for _, r := range filename {
		if r > 127 || r == '"' || r == '\\' || r == ';' || r == ',' {
			needsEncoding = true
			break
		}
	}
	if strings.ContainsAny(filename, " \t\n\r") {
		needsEncoding = true
	}

	if !needsEncoding {
		return fmt.Sprintf(`attachment; filename="%s"`, filename)
	}

	// Format: filename*=UTF-8''<percent-encoded-filename>
	return fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename))
}
