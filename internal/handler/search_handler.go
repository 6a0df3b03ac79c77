package handler

import (
	"context"
	"net/http"

	"tubegate/internal/model"
	"tubegate/internal/service"
	"tubegate/pkg/logger"
	"tubegate/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SearchHandler handles keyword search
type SearchHandler struct {
	fetchService *service.FetchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(fs *service.FetchService) *SearchHandler {
	return &SearchHandler{fetchService: fs}
}

// Search handles GET /search?q=
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if !validator.ValidateQuery(query) {
		logger.Logger.Warn("Invalid search query", zap.Int("length", len(query)))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error: "Invalid or missing query (max 100 characters)",
		})
		return
	}

	results, err := h.fetchService.Search(context.WithoutCancel(c.Request.Context()), validator.NormalizeQuery(query))
	if err != nil {
		g := guidanceFor(err)
		logger.Logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		c.JSON(g.status, model.ErrorResponse{
			Error:   "Search failed",
			Message: g.note,
			Code:    g.status,
		})
		return
	}

	c.JSON(http.StatusOK, results)
}
