package service

import (
	"context"
	"testing"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSocial(t *testing.T) (*SocialService, *memory.Store, *testClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newTestClock()
	return NewSocialService(context.Background(), testOptions(store, clock)), store, clock
}

func TestSocialService_LikeThenDislikeIsMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSocial(t)

	assert.Equal(t, domain.ToggleAdded, s.Like(ctx, "v1", "u1").Action)

	result := s.Dislike(ctx, "v1", "u1")
	assert.Equal(t, domain.ToggleAdded, result.Action)
	require.NotNil(t, result.Cleared)
	assert.Equal(t, domain.InteractionLike, *result.Cleared)

	assert.False(t, s.HasLiked("v1", "u1"))
	assert.True(t, s.HasDisliked("v1", "u1"))

	result = s.Like(ctx, "v1", "u1")
	require.NotNil(t, result.Cleared)
	assert.Equal(t, domain.InteractionDislike, *result.Cleared)
	assert.True(t, s.HasLiked("v1", "u1"))
	assert.False(t, s.HasDisliked("v1", "u1"))
}

func TestSocialService_LikeTogglesBack(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSocial(t)

	before := s.LikeCount("v1")
	assert.Equal(t, domain.ToggleAdded, s.Like(ctx, "v1", "u1").Action)
	result := s.Like(ctx, "v1", "u1")
	assert.Equal(t, domain.ToggleRemoved, result.Action)
	assert.Nil(t, result.Cleared)

	assert.False(t, s.HasLiked("v1", "u1"))
	assert.Equal(t, before, s.LikeCount("v1"))
}

func TestSocialService_CountsAcrossUsers(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSocial(t)

	s.Like(ctx, "v1", "u1")
	s.Like(ctx, "v1", "u2")
	assert.Equal(t, 2, s.LikeCount("v1"))

	s.Dislike(ctx, "v1", "u2")
	assert.Equal(t, 1, s.LikeCount("v1"))
	assert.Equal(t, 1, s.DislikeCount("v1"))
	assert.Equal(t, 0, s.LikeCount("v2"))
}

func TestSocialService_SaveIsIndependentOfReactions(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestSocial(t)

	s.Like(ctx, "v1", "u1")
	assert.Equal(t, domain.ToggleAdded, s.Save(ctx, "v1", "u1").Action)
	clock.Advance(time.Minute)
	s.Save(ctx, "v2", "u1")

	assert.True(t, s.HasLiked("v1", "u1"))
	assert.True(t, s.HasSaved("v1", "u1"))
	assert.Equal(t, []string{"v2", "v1"}, s.SavedItems("u1"))

	assert.Equal(t, domain.ToggleRemoved, s.Save(ctx, "v1", "u1").Action)
	assert.Equal(t, []string{"v2"}, s.SavedItems("u1"))
	assert.True(t, s.HasLiked("v1", "u1"))
}

func TestSocialService_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSocial(t)

	assert.True(t, s.Subscribe(ctx, "u1", "c1"))
	assert.False(t, s.Subscribe(ctx, "u1", "c1"))
	assert.True(t, s.Subscribe(ctx, "u2", "c1"))
	assert.True(t, s.Subscribe(ctx, "u1", "c2"))

	assert.True(t, s.IsSubscribed("u1", "c1"))
	assert.Equal(t, []string{"c1", "c2"}, s.Subscriptions("u1"))
	assert.Equal(t, 2, s.SubscriberCount("c1"))

	assert.True(t, s.Unsubscribe(ctx, "u1", "c1"))
	assert.False(t, s.Unsubscribe(ctx, "u1", "c1"))
	assert.False(t, s.IsSubscribed("u1", "c1"))
	assert.Equal(t, 1, s.SubscriberCount("c1"))
}

func TestSocialService_Share(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSocial(t)

	assert.Equal(t, 1, s.Share(ctx, "v1", "u1", "twitter"))
	assert.Equal(t, 2, s.Share(ctx, "v1", "u2", "reddit"))
	assert.Equal(t, 2, s.ShareCount("v1"))
	assert.Equal(t, 0, s.ShareCount("v2"))
}

func TestSocialService_RestoresFromSnapshot(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newTestSocial(t)

	s.Like(ctx, "v1", "u1")
	s.Subscribe(ctx, "u1", "c1")
	s.Share(ctx, "v1", "u1", "email")

	restored := NewSocialService(ctx, testOptions(store, clock))
	assert.True(t, restored.HasLiked("v1", "u1"))
	assert.True(t, restored.IsSubscribed("u1", "c1"))
	assert.Equal(t, 1, restored.ShareCount("v1"))
}

func TestSocialService_MalformedSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "test:social", []byte("{not json")))

	s := NewSocialService(ctx, testOptions(store, newTestClock()))
	assert.Equal(t, 0, s.LikeCount("v1"))

	assert.Equal(t, domain.ToggleAdded, s.Like(ctx, "v1", "u1").Action)
	assert.Equal(t, 1, s.LikeCount("v1"))
}
