package service

import (
	"context"
	"fmt"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository"
)

const defaultCandidatePool = 200

// DiscoveryService feeds catalog pages into the recommendation and search
// engines.
type DiscoveryService struct {
	catalog         repository.CatalogRepository
	recommendations *RecommendationService
	search          *SearchService
	social          *SocialService
	poolSize        int
}

func NewDiscoveryService(catalog repository.CatalogRepository, recommendations *RecommendationService, search *SearchService, social *SocialService) *DiscoveryService {
	return &DiscoveryService{
		catalog:         catalog,
		recommendations: recommendations,
		search:          search,
		social:          social,
		poolSize:        defaultCandidatePool,
	}
}

func (s *DiscoveryService) candidates(ctx context.Context) ([]domain.ContentItem, error) {
	items, err := s.catalog.List(ctx, s.poolSize, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return items, nil
}

// Recommend returns up to limit items for userID, skipping excludeID.
func (s *DiscoveryService) Recommend(ctx context.Context, userID, excludeID string, limit int) ([]domain.ContentItem, error) {
	pool, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	ids := s.recommendations.Recommendations(RecommendationRequest{
		UserID:             userID,
		Candidates:         pool,
		ExcludeID:          excludeID,
		Limit:              limit,
		SubscribedChannels: s.social.Subscriptions(userID),
	})

	byID := make(map[string]domain.ContentItem, len(pool))
	for _, item := range pool {
		byID[item.ID] = item
	}
	out := make([]domain.ContentItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

func (s *DiscoveryService) Trending(ctx context.Context, windowHours float64) ([]domain.ContentItem, error) {
	pool, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.recommendations.Trending(windowHours, pool), nil
}

// Related ranks catalog items against contentID.
func (s *DiscoveryService) Related(ctx context.Context, contentID string, limit int) ([]domain.ContentItem, error) {
	source, err := s.catalog.GetByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	pool, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.recommendations.RelatedVideos(*source, pool, limit), nil
}

// Search runs req against the catalog and remembers the query for userID.
func (s *DiscoveryService) Search(ctx context.Context, userID string, req SearchRequest) ([]domain.ContentItem, error) {
	pool, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	results := s.search.Search(req, pool)
	if userID != "" {
		s.search.RecordSearch(ctx, userID, req.Query)
	}
	return results, nil
}
