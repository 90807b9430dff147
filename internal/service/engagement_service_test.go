package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engines struct {
	social          *SocialService
	comments        *CommentService
	analytics       *AnalyticsService
	moderation      *ModerationService
	recommendations *RecommendationService
	monetization    *MonetizationService
	search          *SearchService
	catalog         *memory.Catalog
	engagement      *EngagementService
	discovery       *DiscoveryService
}

func newTestEngines(t *testing.T) *engines {
	t.Helper()
	ctx := context.Background()
	opts := testOptions(memory.NewStore(), newTestClock())

	e := &engines{
		social:          NewSocialService(ctx, opts),
		comments:        NewCommentService(ctx, opts, nil),
		analytics:       NewAnalyticsService(ctx, opts, DefaultAnalyticsConfig(), nil),
		moderation:      NewModerationService(ctx, opts, ModerationConfig{}, nil),
		recommendations: NewRecommendationService(ctx, opts),
		monetization:    NewMonetizationService(ctx, opts, DefaultMonetizationSettings(), nil),
		search:          NewSearchService(ctx, opts),
		catalog: memory.NewCatalog(
			domain.ContentItem{ID: "v1", Title: "Go basics", ChannelID: "c1", CategoryID: "edu", PublishedAt: baseTime, DurationSeconds: 100},
			domain.ContentItem{ID: "v2", Title: "Go advanced", ChannelID: "c1", CategoryID: "edu", PublishedAt: baseTime},
			domain.ContentItem{ID: "v3", Title: "Cooking", ChannelID: "c2", CategoryID: "food", PublishedAt: baseTime},
		),
	}
	e.engagement = NewEngagementService(e.social, e.comments, e.analytics, e.moderation, e.recommendations, e.monetization, e.catalog, nil)
	e.discovery = NewDiscoveryService(e.catalog, e.recommendations, e.search, e.social)
	return e
}

func TestEngagementService_ReactionsStayConsistent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	e.engagement.LikeContent(ctx, "v1", "u1")
	e.engagement.LikeContent(ctx, "v1", "u2")
	e.engagement.DislikeContent(ctx, "v1", "u2")

	va := e.analytics.Video("v1")
	assert.Equal(t, int64(e.social.LikeCount("v1")), va.Likes)
	assert.Equal(t, int64(e.social.DislikeCount("v1")), va.Dislikes)
	assert.Equal(t, int64(1), va.Likes)
	assert.Equal(t, int64(1), va.Dislikes)

	e.engagement.DislikeContent(ctx, "v1", "u2")
	e.engagement.LikeContent(ctx, "v1", "u1")
	va = e.analytics.Video("v1")
	assert.Zero(t, va.Likes)
	assert.Zero(t, va.Dislikes)
}

func TestEngagementService_CommentsPassModeration(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	c, verdict, err := e.engagement.PostComment(ctx, "v1", alice, "nice one", "")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, verdict.Allowed)

	reply, _, err := e.engagement.PostComment(ctx, "v1", bob, "agreed", c.ID)
	require.NoError(t, err)
	require.NotNil(t, reply)

	refused, verdict, err := e.engagement.PostComment(ctx, "v1", bob, strings.Repeat("idiot ", 10), "")
	require.NoError(t, err)
	assert.Nil(t, refused)
	assert.False(t, verdict.Allowed)

	_, _, err = e.engagement.PostComment(ctx, "v1", bob, "orphan", "missing")
	assert.True(t, errors.Is(err, domain.ErrCommentNotFound))

	assert.Equal(t, 2, e.comments.Count("v1"))
	assert.Equal(t, int64(2), e.analytics.Video("v1").Comments)

	removed, err := e.engagement.DeleteComment(ctx, "v1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Zero(t, e.analytics.Video("v1").Comments)

	_, err = e.engagement.DeleteComment(ctx, "v1", c.ID)
	assert.ErrorIs(t, err, domain.ErrCommentNotFound)
}

func TestEngagementService_WatchFillsFromCatalog(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	require.NoError(t, e.engagement.Watch(ctx, domain.ViewEvent{ContentID: "v1", UserID: "u1", WatchSeconds: 50}))
	require.NoError(t, e.engagement.Watch(ctx, domain.ViewEvent{ContentID: "unknown", UserID: "u1", WatchSeconds: 5}))

	va := e.analytics.Video("v1")
	assert.Equal(t, "c1", va.ChannelID)
	assert.Equal(t, int64(1), va.RetentionHistogram[50])
	assert.Equal(t, int64(1), e.analytics.Video("unknown").Views)

	history := e.recommendations.History("u1")
	require.Len(t, history, 1)
	assert.Equal(t, "v1", history[0].ID)
}

func TestEngagementService_ShareAndSubscribe(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	assert.Equal(t, 1, e.engagement.Share(ctx, "v1", "u1", "email"))
	assert.Equal(t, int64(1), e.analytics.Video("v1").Shares)

	assert.True(t, e.engagement.SubscribeChannel(ctx, "u1", "c1"))
	assert.False(t, e.engagement.SubscribeChannel(ctx, "u1", "c1"))
	assert.Equal(t, int64(1), e.analytics.ChannelAnalytics("c1").Subscribers)

	assert.True(t, e.engagement.UnsubscribeChannel(ctx, "u1", "c1"))
	assert.False(t, e.engagement.UnsubscribeChannel(ctx, "u1", "c1"))
	assert.Zero(t, e.analytics.ChannelAnalytics("c1").Subscribers)
}

func TestEngagementService_RevenueReachesChannelAnalytics(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	e.engagement.SuperChat(ctx, SuperChatRequest{ChannelID: "c1", ContentID: "v1", Amount: 10})
	e.engagement.Membership(ctx, "c1", "u1", domain.TierBasic)
	e.engagement.Merchandise(ctx, "c1", "mug", 10, 1)
	e.engagement.Sponsorship(ctx, "c1", "acme", 100)
	e.engagement.Membership(ctx, "c1", "u1", "platinum")

	rev := e.analytics.ChannelAnalytics("c1").RevenueBySource
	assert.InDelta(t, 7.0, rev["super_chat"], 1e-9)
	assert.InDelta(t, 3.49, rev["memberships"], 1e-9)
	assert.InDelta(t, 9.0, rev["merchandise"], 1e-9)
	assert.InDelta(t, 100.0, rev["sponsorships"], 1e-9)
}

func TestDiscoveryService(t *testing.T) {
	ctx := context.Background()
	e := newTestEngines(t)

	require.NoError(t, e.engagement.Watch(ctx, domain.ViewEvent{ContentID: "v1", UserID: "u1"}))
	e.social.Subscribe(ctx, "u1", "c2")

	recs, err := e.discovery.Recommend(ctx, "u1", "v1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "v2", recs[0].ID)
	assert.Equal(t, "v3", recs[1].ID)

	related, err := e.discovery.Related(ctx, "v1", 1)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "v2", related[0].ID)

	_, err = e.discovery.Related(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	found, err := e.discovery.Search(ctx, "u1", SearchRequest{Query: "go"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, []string{"go"}, e.search.History("u1"))

	trending, err := e.discovery.Trending(ctx, 24)
	require.NoError(t, err)
	assert.Len(t, trending, 3)
}
