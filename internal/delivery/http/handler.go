package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/listproxy/backend/internal/domain"
)

// ListingUsecase is the listing side of the proxy core
type ListingUsecase interface {
	GetFeed(ctx context.Context, path string, limit int) ([]domain.ProductItem, error)
	GetItems(ctx context.Context, brand string, limit int) ([]domain.ProductItem, error)
	Search(ctx context.Context, keyword, category string, limit int) ([]domain.ProductItem, error)
}

// ResourceUsecase is the raw passthrough side of the proxy core
type ResourceUsecase interface {
	GetResource(ctx context.Context, path string, clientHeader http.Header) (*domain.Resource, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	listings  ListingUsecase
	resources ResourceUsecase
}

// NewHandler creates a new HTTP handler
func NewHandler(listings ListingUsecase, resources ResourceUsecase) *Handler {
	return &Handler{listings: listings, resources: resources}
}

// itemsResponse is the body of every listing endpoint
type itemsResponse struct {
	Items []domain.ProductItem `json:"items"`
	Count int                  `json:"count"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "listproxy-backend",
		"version": "1.0.0",
	})
}

// GetFeed handles GET /api/home/feed?path=&limit=
func (h *Handler) GetFeed(c *gin.Context) {
	items, err := h.listings.GetFeed(c.Request.Context(), c.DefaultQuery("path", "/"), parseLimit(c))
	h.respondItems(c, items, err)
}

// GetItems handles GET /api/home/items?brand=&limit=
func (h *Handler) GetItems(c *gin.Context) {
	items, err := h.listings.GetItems(c.Request.Context(), c.Query("brand"), parseLimit(c))
	h.respondItems(c, items, err)
}

// Search handles GET /api/home/search?keyword=&category=&limit=
func (h *Handler) Search(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		category = c.Query("category_id")
	}
	items, err := h.listings.Search(c.Request.Context(), c.Query("keyword"), category, parseLimit(c))
	h.respondItems(c, items, err)
}

// GetResource handles GET {resource endpoint}?path=
func (h *Handler) GetResource(c *gin.Context) {
	res, err := h.resources.GetResource(c.Request.Context(), c.DefaultQuery("path", "/"), c.Request.Header)
	if err != nil {
		respondError(c, err)
		return
	}

	header := c.Writer.Header()
	for name, values := range res.Header {
		header[name] = values
	}
	c.Data(res.StatusCode, res.ContentType, res.Body)
}

func (h *Handler) respondItems(c *gin.Context, items []domain.ProductItem, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []domain.ProductItem{}
	}
	c.JSON(http.StatusOK, itemsResponse{Items: items, Count: len(items)})
}

// parseLimit reads the limit query parameter; anything unparsable means "use the default"
func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
