package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, channel, category string, published time.Time, tags ...string) domain.ContentItem {
	return domain.ContentItem{
		ID:          id,
		Title:       "Video " + id,
		ChannelID:   channel,
		CategoryID:  category,
		Tags:        tags,
		PublishedAt: published,
	}
}

func TestSimilarity(t *testing.T) {
	a := item("a", "c1", "music", baseTime, "rock", "live", "90s")
	tests := []struct {
		name string
		b    domain.ContentItem
		want float64
	}{
		{"same channel and category within a week", item("b", "c1", "music", baseTime.Add(48*time.Hour)), 90},
		{"shared tags only", item("b", "c2", "news", baseTime.Add(30*24*time.Hour), "rock", "90s", "pop"), 10},
		{"nothing in common", item("b", "c2", "news", baseTime.Add(-8*24*time.Hour)), 0},
		{"published exactly a week apart", item("b", "c2", "news", baseTime.Add(7*24*time.Hour)), 10},
		{"everything", item("b", "c1", "music", baseTime, "rock", "live", "90s"), 105},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(a, tt.b))
		})
	}
}

func TestSimilarity_IsSymmetric(t *testing.T) {
	items := []domain.ContentItem{
		item("a", "c1", "music", baseTime, "rock", "rock", "live"),
		item("b", "c1", "gaming", baseTime.Add(6*24*time.Hour), "rock"),
		item("c", "", "", baseTime.Add(-3*time.Hour), "live", "chill"),
		item("d", "c2", "music", baseTime.Add(40*24*time.Hour)),
	}
	for _, a := range items {
		for _, b := range items {
			assert.Equal(t, Similarity(a, b), Similarity(b, a), "%s vs %s", a.ID, b.ID)
		}
	}
}

func newTestRecommendations(t *testing.T) (*RecommendationService, *memory.Store, *testClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newTestClock()
	return NewRecommendationService(context.Background(), testOptions(store, clock)), store, clock
}

func TestRecommendationService_AccumulatesOverHistory(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestRecommendations(t)
	old := baseTime.Add(-100 * 24 * time.Hour)

	watched1 := item("w1", "c1", "music", old)
	watched2 := item("w2", "c1", "gaming", old)
	s.RecordWatch(ctx, "u1", watched1)
	s.RecordWatch(ctx, "u1", watched2)

	candidates := []domain.ContentItem{
		item("x", "c9", "music", baseTime),  // 30 from w1
		item("y", "c1", "other", baseTime),  // 50 + 50
		item("z", "c7", "other", baseTime),  // 0, subscribed +40
		watched1,                            // self-match skipped, 60 from w2
		item("ex", "c1", "music", baseTime), // excluded
	}

	ids := s.Recommendations(RecommendationRequest{
		UserID:             "u1",
		Candidates:         candidates,
		ExcludeID:          "ex",
		Limit:              10,
		SubscribedChannels: []string{"c7"},
	})
	assert.Equal(t, []string{"y", "w1", "z", "x"}, ids)

	limited := s.Recommendations(RecommendationRequest{UserID: "u1", Candidates: candidates, ExcludeID: "ex", Limit: 2})
	assert.Equal(t, []string{"y", "w1"}, limited)
}

func TestRecommendationService_ExcludedItemStillScoresFromHistory(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestRecommendations(t)
	old := baseTime.Add(-100 * 24 * time.Hour)

	current := item("v1", "c1", "edu", old)
	s.RecordWatch(ctx, "u1", current)

	candidates := []domain.ContentItem{
		current,
		item("v2", "c1", "edu", old.Add(time.Hour)),
		item("v3", "c2", "food", baseTime),
	}

	ids := s.Recommendations(RecommendationRequest{
		UserID:             "u1",
		Candidates:         candidates,
		ExcludeID:          "v1",
		Limit:              10,
		SubscribedChannels: []string{"c2"},
	})
	assert.Equal(t, []string{"v2", "v3"}, ids)
}

func TestRecommendationService_HistoryIsBoundedAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newTestRecommendations(t)

	for i := 0; i < maxWatchHistory+10; i++ {
		s.RecordWatch(ctx, "u1", item(fmt.Sprintf("v%d", i), "c", "k", baseTime))
	}
	s.RecordWatch(ctx, "u1", item("v50", "c", "k", baseTime))

	history := s.History("u1")
	require.Len(t, history, maxWatchHistory)
	assert.Equal(t, "v50", history[0].ID)
	assert.Equal(t, "v109", history[1].ID)

	restored := NewRecommendationService(ctx, testOptions(store, clock))
	assert.Len(t, restored.History("u1"), maxWatchHistory)

	restored.ClearHistory(ctx, "u1")
	assert.Empty(t, restored.History("u1"))
}

func TestRecommendationService_Trending(t *testing.T) {
	s, _, _ := newTestRecommendations(t)

	fresh := item("fresh", "c", "k", baseTime.Add(-30*time.Minute))
	fresh.ViewCount = 500
	older := item("older", "c", "k", baseTime.Add(-10*time.Hour))
	older.ViewCount = 2000
	stale := item("stale", "c", "k", baseTime.Add(-72*time.Hour))
	stale.ViewCount = 1000000
	future := item("future", "c", "k", baseTime.Add(time.Hour))

	got := s.Trending(24, []domain.ContentItem{older, stale, fresh, future})
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "older", got[1].ID)
}

func TestRecommendationService_TrendingCapsAtFifty(t *testing.T) {
	s, _, _ := newTestRecommendations(t)

	var catalog []domain.ContentItem
	for i := 0; i < 80; i++ {
		it := item(fmt.Sprintf("v%d", i), "c", "k", baseTime.Add(-time.Duration(i)*time.Minute))
		it.ViewCount = int64(i * i)
		catalog = append(catalog, it)
	}
	got := s.Trending(24*365, catalog)
	require.Len(t, got, maxTrending)
	assert.Equal(t, "v79", got[0].ID)
}

func TestRecommendationService_RelatedVideos(t *testing.T) {
	s, _, _ := newTestRecommendations(t)
	source := item("src", "c1", "music", baseTime)

	catalog := []domain.ContentItem{
		item("a", "c2", "music", baseTime.Add(-60*24*time.Hour)),
		source,
		item("b", "c1", "music", baseTime),
		item("c", "c3", "news", baseTime.Add(-60*24*time.Hour)),
	}
	got := s.RelatedVideos(source, catalog, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}
