package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
)

const (
	recommendationEngine = "recommendations"
	maxWatchHistory      = 100
	maxTrending          = 50

	sameChannelScore   = 50
	sameCategoryScore  = 30
	sharedTagScore     = 5
	publishedNearScore = 10
	subscribedBonus    = 40
	publishedNearLimit = 7 * 24 * time.Hour
)

type RecommendationRequest struct {
	UserID             string
	Candidates         []domain.ContentItem
	ExcludeID          string
	Limit              int
	SubscribedChannels []string
}

type watchEntry struct {
	Item      domain.ContentItem `json:"item"`
	WatchedAt time.Time          `json:"watched_at"`
}

// RecommendationService scores catalog items against a user's watch history.
type RecommendationService struct {
	mu       sync.Mutex
	history  map[string][]watchEntry
	snapshot *snapshotter
	nowFn    func() time.Time
}

func NewRecommendationService(ctx context.Context, opts EngineOptions) *RecommendationService {
	s := &RecommendationService{
		history:  make(map[string][]watchEntry),
		snapshot: newSnapshotter(opts, recommendationEngine),
		nowFn:    opts.clock(),
	}

	var loaded map[string][]watchEntry
	if s.snapshot.load(ctx, &loaded) && loaded != nil {
		s.history = loaded
	}
	return s
}

// Similarity scores how alike two items are. The formula treats both
// arguments identically, so Similarity(a, b) == Similarity(b, a).
func Similarity(a, b domain.ContentItem) float64 {
	var score float64
	if a.ChannelID != "" && a.ChannelID == b.ChannelID {
		score += sameChannelScore
	}
	if a.CategoryID != "" && a.CategoryID == b.CategoryID {
		score += sameCategoryScore
	}
	for _, tag := range uniqueTags(a.Tags) {
		if b.HasTag(tag) {
			score += sharedTagScore
		}
	}
	gap := a.PublishedAt.Sub(b.PublishedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap <= publishedNearLimit {
		score += publishedNearScore
	}
	return score
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// RecordWatch prepends item to userID's history, keeping the newest entries
// and dropping an earlier entry for the same item.
func (s *RecommendationService) RecordWatch(ctx context.Context, userID string, item domain.ContentItem) {
	metrics.EngineOperations.WithLabelValues(recommendationEngine, "record_watch").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []watchEntry{{Item: item, WatchedAt: s.nowFn()}}
	for _, e := range s.history[userID] {
		if e.Item.ID != item.ID {
			entries = append(entries, e)
		}
	}
	if len(entries) > maxWatchHistory {
		entries = entries[:maxWatchHistory]
	}
	s.history[userID] = entries
	s.snapshot.save(ctx, s.history)
}

// History returns userID's watched items, newest first.
func (s *RecommendationService) History(userID string) []domain.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ContentItem, 0, len(s.history[userID]))
	for _, e := range s.history[userID] {
		out = append(out, e.Item)
	}
	return out
}

func (s *RecommendationService) ClearHistory(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[userID]; !ok {
		return
	}
	delete(s.history, userID)
	s.snapshot.save(ctx, s.history)
}

// Recommendations accumulates, for every candidate, its similarity to each
// watched item, adds the subscription bonus, and returns the best ids.
// ExcludeID and self-matches never accumulate a score.
func (s *RecommendationService) Recommendations(req RecommendationRequest) []string {
	metrics.EngineOperations.WithLabelValues(recommendationEngine, "recommend").Inc()

	history := s.History(req.UserID)

	subscribed := make(map[string]bool, len(req.SubscribedChannels))
	for _, ch := range req.SubscribedChannels {
		subscribed[ch] = true
	}

	type scored struct {
		id    string
		score float64
	}
	index := make(map[string]int)
	var ranked []scored

	for _, cand := range req.Candidates {
		if cand.ID == req.ExcludeID {
			continue
		}
		if _, dup := index[cand.ID]; dup {
			continue
		}

		var score float64
		for _, watched := range history {
			if watched.ID == cand.ID {
				continue
			}
			score += Similarity(watched, cand)
		}
		if subscribed[cand.ChannelID] {
			score += subscribedBonus
		}

		index[cand.ID] = len(ranked)
		ranked = append(ranked, scored{id: cand.ID, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	limit := req.Limit
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	ids := make([]string, 0, limit)
	for _, r := range ranked[:limit] {
		ids = append(ids, r.id)
	}
	return ids
}

// Trending ranks items published within the last windowHours by views per
// hour since publish. At most fifty items are returned.
func (s *RecommendationService) Trending(windowHours float64, catalog []domain.ContentItem) []domain.ContentItem {
	now := s.nowFn()
	window := time.Duration(windowHours * float64(time.Hour))

	type scored struct {
		item     domain.ContentItem
		velocity float64
	}
	var ranked []scored
	for _, item := range catalog {
		age := now.Sub(item.PublishedAt)
		if age < 0 || age > window {
			continue
		}
		hours := age.Hours()
		if hours < 1 {
			hours = 1
		}
		ranked = append(ranked, scored{item: item, velocity: float64(item.ViewCount) / hours})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].velocity > ranked[j].velocity
	})
	if len(ranked) > maxTrending {
		ranked = ranked[:maxTrending]
	}

	out := make([]domain.ContentItem, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.item)
	}
	return out
}

// RelatedVideos ranks catalog items by similarity to source.
func (s *RecommendationService) RelatedVideos(source domain.ContentItem, catalog []domain.ContentItem, limit int) []domain.ContentItem {
	type scored struct {
		item  domain.ContentItem
		score float64
	}
	var ranked []scored
	for _, item := range catalog {
		if item.ID == source.ID {
			continue
		}
		ranked = append(ranked, scored{item: item, score: Similarity(source, item)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]domain.ContentItem, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.item)
	}
	return out
}
