package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
)

const (
	searchEngine         = "search"
	maxSearchHistory     = 50
	maxHistorySuggestion = 5
)

var suggestionTemplates = []string{
	"%s tutorial",
	"%s review",
	"%s explained",
	"%s for beginners",
	"%s tips",
	"%s highlights",
	"%s live",
	"%s music",
}

type SearchRequest struct {
	Query       string
	Filters     domain.SearchFilters
	SortBy      domain.SearchSort
	BypassCache bool
}

// SearchService ranks catalog items against a query. Ranked results are
// cached per (query, filters) for the life of the process; callers opt out
// with BypassCache.
type SearchService struct {
	mu       sync.Mutex
	history  map[string][]string
	cache    map[string][]domain.ContentItem
	snapshot *snapshotter
	nowFn    func() time.Time
}

func NewSearchService(ctx context.Context, opts EngineOptions) *SearchService {
	s := &SearchService{
		history:  make(map[string][]string),
		cache:    make(map[string][]domain.ContentItem),
		snapshot: newSnapshotter(opts, searchEngine),
		nowFn:    opts.clock(),
	}

	var loaded map[string][]string
	if s.snapshot.load(ctx, &loaded) && loaded != nil {
		s.history = loaded
	}
	return s
}

// Relevance scores item against query. Every bonus is independent of the
// others.
func (s *SearchService) Relevance(item domain.ContentItem, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	title := strings.ToLower(item.Title)
	desc := strings.ToLower(item.Description)

	var score float64
	if q != "" {
		if title == q {
			score += 100
		}
		if strings.HasPrefix(title, q) {
			score += 50
		}
		if strings.Contains(title, q) {
			score += 30
		}
		if strings.Contains(desc, q) {
			score += 10
		}
		for _, word := range strings.Fields(q) {
			if strings.Contains(title, word) {
				score += 5
			}
		}
	}

	age := s.nowFn().Sub(item.PublishedAt)
	switch {
	case age < 7*24*time.Hour:
		score += 15
	case age < 30*24*time.Hour:
		score += 10
	}

	switch {
	case item.ViewCount >= 1000000:
		score += 20
	case item.ViewCount >= 100000:
		score += 10
	case item.ViewCount >= 10000:
		score += 5
	}
	return score
}

// matchesText is the gate an item has to pass before it is ranked at all.
func matchesText(item domain.ContentItem, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	title := strings.ToLower(item.Title)
	if strings.Contains(title, q) || strings.Contains(strings.ToLower(item.Description), q) {
		return true
	}
	for _, word := range strings.Fields(q) {
		if strings.Contains(title, word) {
			return true
		}
	}
	return false
}

// ApplyFilters keeps the items that pass every set filter.
func (s *SearchService) ApplyFilters(items []domain.ContentItem, filters domain.SearchFilters) []domain.ContentItem {
	window, hasWindow := filters.UploadDate.Window()
	now := s.nowFn()

	out := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if hasWindow && now.Sub(item.PublishedAt) > window {
			continue
		}
		if filters.Duration != "" && !filters.Duration.Matches(item.DurationSeconds) {
			continue
		}
		if filters.ChannelID != "" && item.ChannelID != filters.ChannelID {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Sort orders items in place. Relevance leaves the input as it is.
func (s *SearchService) Sort(items []domain.ContentItem, by domain.SearchSort) []domain.ContentItem {
	switch by {
	case domain.SortDate:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		})
	case domain.SortViewCount:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ViewCount > items[j].ViewCount
		})
	case domain.SortRating:
		sort.SliceStable(items, func(i, j int) bool {
			return rating(items[i]) > rating(items[j])
		})
	}
	return items
}

func rating(item domain.ContentItem) float64 {
	views := item.ViewCount
	if views < 1 {
		views = 1
	}
	return float64(item.LikeCount) / float64(views)
}

// Search gates, ranks and filters catalog for req.Query, then applies the
// requested sort.
func (s *SearchService) Search(req SearchRequest, catalog []domain.ContentItem) []domain.ContentItem {
	metrics.EngineOperations.WithLabelValues(searchEngine, "search").Inc()

	key := cacheKey(req.Query, req.Filters)

	var ranked []domain.ContentItem
	if !req.BypassCache {
		s.mu.Lock()
		cached, ok := s.cache[key]
		s.mu.Unlock()
		if ok {
			metrics.SearchCache.WithLabelValues("hit").Inc()
			ranked = cached
		} else {
			metrics.SearchCache.WithLabelValues("miss").Inc()
		}
	} else {
		metrics.SearchCache.WithLabelValues("bypass").Inc()
	}

	if ranked == nil {
		ranked = s.rank(req.Query, req.Filters, catalog)
		if !req.BypassCache {
			s.mu.Lock()
			s.cache[key] = ranked
			s.mu.Unlock()
		}
	}

	out := append([]domain.ContentItem(nil), ranked...)
	return s.Sort(out, req.SortBy)
}

func (s *SearchService) rank(query string, filters domain.SearchFilters, catalog []domain.ContentItem) []domain.ContentItem {
	type scored struct {
		item  domain.ContentItem
		score float64
	}
	var ranked []scored
	for _, item := range s.ApplyFilters(catalog, filters) {
		if !matchesText(item, query) {
			continue
		}
		ranked = append(ranked, scored{item: item, score: s.Relevance(item, query)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]domain.ContentItem, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.item)
	}
	return out
}

func cacheKey(query string, f domain.SearchFilters) string {
	return fmt.Sprintf("%s|%s|%s|%s", strings.ToLower(strings.TrimSpace(query)), f.UploadDate, f.Duration, f.ChannelID)
}

// ClearCache drops every cached result.
func (s *SearchService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string][]domain.ContentItem)
	s.mu.Unlock()
}

// RecordSearch moves query to the front of userID's history.
func (s *SearchService) RecordSearch(ctx context.Context, userID, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []string{query}
	for _, q := range s.history[userID] {
		if !strings.EqualFold(q, query) {
			entries = append(entries, q)
		}
	}
	if len(entries) > maxSearchHistory {
		entries = entries[:maxSearchHistory]
	}
	s.history[userID] = entries
	s.snapshot.save(ctx, s.history)
}

func (s *SearchService) History(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.history[userID]...)
}

func (s *SearchService) ClearHistory(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[userID]; !ok {
		return
	}
	delete(s.history, userID)
	s.snapshot.save(ctx, s.history)
}

// Suggestions offers up to five matching past searches, then templated
// completions of query, without repeats.
func (s *SearchService) Suggestions(userID, query string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)

	out := make([]string, 0, limit)
	seen := make(map[string]bool)
	add := func(v string) {
		key := strings.ToLower(v)
		if len(out) < limit && !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}

	fromHistory := 0
	for _, past := range s.History(userID) {
		if fromHistory == maxHistorySuggestion {
			break
		}
		if strings.Contains(strings.ToLower(past), lower) {
			add(past)
			fromHistory++
		}
	}

	if q == "" {
		return out
	}
	for _, tmpl := range suggestionTemplates {
		add(fmt.Sprintf(tmpl, q))
	}
	return out
}
