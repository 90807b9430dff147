package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	defaultTrending  = 24.0
)

type DiscoveryHandler struct {
	catalog         repository.CatalogRepository
	discovery       *service.DiscoveryService
	recommendations *service.RecommendationService
	search          *service.SearchService
	log             *logger.Logger
}

func NewDiscoveryHandler(
	catalog repository.CatalogRepository,
	discovery *service.DiscoveryService,
	recommendations *service.RecommendationService,
	search *service.SearchService,
	log *logger.Logger,
) *DiscoveryHandler {
	return &DiscoveryHandler{
		catalog:         catalog,
		discovery:       discovery,
		recommendations: recommendations,
		search:          search,
		log:             log,
	}
}

func (h *DiscoveryHandler) ListContent(c *gin.Context) {
	ctx := c.Request.Context()

	limit, ok := queryLimit(c, defaultPageLimit, maxPageLimit)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.ValidationError(c, "page must be >= 1")
		return
	}
	if page-1 > (math.MaxInt-1)/limit {
		response.ValidationError(c, "page is too large")
		return
	}

	items, err := h.catalog.List(ctx, limit+1, (page-1)*limit)
	if err != nil {
		h.log.Error(ctx, "Failed to list content", err, nil)
		response.InternalError(c, "Failed to list content")
		return
	}

	hasNext := len(items) > limit
	if hasNext {
		items = items[:limit]
	}
	response.SuccessWithList(c, items, response.PaginationMeta{
		Page:        page,
		Limit:       limit,
		HasNext:     hasNext,
		HasPrevious: page > 1,
	})
}

func (h *DiscoveryHandler) GetContent(c *gin.Context) {
	ctx := c.Request.Context()

	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}

	item, err := h.catalog.GetByID(ctx, contentID)
	if err != nil {
		h.catalogError(c, err, contentID)
		return
	}
	response.Success(c, http.StatusOK, item)
}

func (h *DiscoveryHandler) Recommendations(c *gin.Context) {
	ctx := c.Request.Context()

	limit, ok := queryLimit(c, defaultPageLimit, maxPageLimit)
	if !ok {
		return
	}

	items, err := h.discovery.Recommend(ctx, c.Query("user_id"), c.Query("exclude"), limit)
	if err != nil {
		h.log.Error(ctx, "Failed to build recommendations", err, nil)
		response.InternalError(c, "Failed to build recommendations")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

func (h *DiscoveryHandler) Trending(c *gin.Context) {
	ctx := c.Request.Context()

	hours := defaultTrending
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			response.ValidationError(c, "hours must be a positive number")
			return
		}
		hours = parsed
	}

	items, err := h.discovery.Trending(ctx, hours)
	if err != nil {
		h.log.Error(ctx, "Failed to compute trending", err, nil)
		response.InternalError(c, "Failed to compute trending")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

func (h *DiscoveryHandler) Related(c *gin.Context) {
	ctx := c.Request.Context()

	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c, 10, maxPageLimit)
	if !ok {
		return
	}

	items, err := h.discovery.Related(ctx, contentID, limit)
	if err != nil {
		h.catalogError(c, err, contentID)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

func (h *DiscoveryHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	req := service.SearchRequest{
		Query: c.Query("q"),
		Filters: domain.SearchFilters{
			UploadDate: domain.UploadDateFilter(c.Query("upload_date")),
			Duration:   domain.DurationFilter(c.Query("duration")),
			ChannelID:  c.Query("channel_id"),
		},
		SortBy:      domain.SearchSort(c.DefaultQuery("sort", string(domain.SortRelevance))),
		BypassCache: c.Query("fresh") == "true",
	}
	if req.Query == "" {
		response.ValidationError(c, "q is required")
		return
	}
	if msg := validateSearch(req); msg != "" {
		response.ValidationError(c, msg)
		return
	}

	items, err := h.discovery.Search(ctx, c.Query("user_id"), req)
	if err != nil {
		h.log.Error(ctx, "Search failed", err, map[string]interface{}{"query": req.Query})
		response.InternalError(c, "Search failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func validateSearch(req service.SearchRequest) string {
	switch req.SortBy {
	case domain.SortRelevance, domain.SortDate, domain.SortViewCount, domain.SortRating:
	default:
		return "sort must be relevance, date, view_count or rating"
	}
	if req.Filters.UploadDate != "" {
		if _, ok := req.Filters.UploadDate.Window(); !ok {
			return "upload_date must be hour, today, week, month or year"
		}
	}
	switch req.Filters.Duration {
	case "", domain.DurationShort, domain.DurationMedium, domain.DurationLong:
	default:
		return "duration must be short, medium or long"
	}
	return ""
}

func (h *DiscoveryHandler) Suggestions(c *gin.Context) {
	limit, ok := queryLimit(c, 8, 20)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"suggestions": h.search.Suggestions(c.Query("user_id"), c.Query("q"), limit),
	})
}

func (h *DiscoveryHandler) SearchHistory(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"queries": h.search.History(userID)})
}

func (h *DiscoveryHandler) ClearSearchHistory(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	h.search.ClearHistory(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func (h *DiscoveryHandler) WatchHistory(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": h.recommendations.History(userID)})
}

func (h *DiscoveryHandler) ClearWatchHistory(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	h.recommendations.ClearHistory(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func (h *DiscoveryHandler) catalogError(c *gin.Context, err error, contentID string) {
	if errors.Is(err, domain.ErrContentNotFound) {
		response.NotFound(c, "Content not found")
		return
	}
	h.log.Error(c.Request.Context(), "Catalog lookup failed", err, map[string]interface{}{
		"content_id": contentID,
	})
	response.InternalError(c, "Failed to retrieve content")
}
