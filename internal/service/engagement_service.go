package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository"
	"github.com/orchids/sandtube/pkg/logger"
)

// EngagementService keeps the engines consistent with each other. Every
// user-facing action that touches more than one engine goes through here.
type EngagementService struct {
	social          *SocialService
	comments        *CommentService
	analytics       *AnalyticsService
	moderation      *ModerationService
	recommendations *RecommendationService
	monetization    *MonetizationService
	catalog         repository.CatalogRepository
	log             *logger.Logger
}

func NewEngagementService(
	social *SocialService,
	comments *CommentService,
	analytics *AnalyticsService,
	moderation *ModerationService,
	recommendations *RecommendationService,
	monetization *MonetizationService,
	catalog repository.CatalogRepository,
	log *logger.Logger,
) *EngagementService {
	if log == nil {
		log = logger.NewNop()
	}
	return &EngagementService{
		social:          social,
		comments:        comments,
		analytics:       analytics,
		moderation:      moderation,
		recommendations: recommendations,
		monetization:    monetization,
		catalog:         catalog,
		log:             log.Component("engagement"),
	}
}

// LikeContent toggles a like and mirrors the change, including a cleared
// dislike, into the analytics counters.
func (s *EngagementService) LikeContent(ctx context.Context, contentID, userID string) domain.ToggleResult {
	result := s.social.Like(ctx, contentID, userID)
	s.mirrorReaction(ctx, contentID, domain.EngagementLike, result)
	return result
}

func (s *EngagementService) DislikeContent(ctx context.Context, contentID, userID string) domain.ToggleResult {
	result := s.social.Dislike(ctx, contentID, userID)
	s.mirrorReaction(ctx, contentID, domain.EngagementDislike, result)
	return result
}

func (s *EngagementService) mirrorReaction(ctx context.Context, contentID string, kind domain.EngagementKind, result domain.ToggleResult) {
	if result.Cleared != nil {
		s.analytics.AdjustEngagement(ctx, contentID, engagementFor(*result.Cleared), -1)
	}
	if result.Action == domain.ToggleAdded {
		s.analytics.AdjustEngagement(ctx, contentID, kind, 1)
	} else {
		s.analytics.AdjustEngagement(ctx, contentID, kind, -1)
	}
}

func engagementFor(kind domain.InteractionKind) domain.EngagementKind {
	if kind == domain.InteractionDislike {
		return domain.EngagementDislike
	}
	return domain.EngagementLike
}

// PostComment runs moderation first and stores the comment only when it is
// allowed. A nil comment with a nil error means moderation refused it.
func (s *EngagementService) PostComment(ctx context.Context, contentID string, author domain.Author, text, parentID string) (*domain.Comment, domain.ModerationResult, error) {
	verdict := s.moderation.Moderate(ctx, ModerateRequest{
		ContentID:   contentID,
		ContentType: "comment",
		AuthorID:    author.ID,
		Text:        text,
	})
	if !verdict.Allowed {
		return nil, verdict, nil
	}

	comment := s.comments.Post(ctx, contentID, author, text, parentID)
	if comment == nil {
		return nil, verdict, domain.ErrCommentNotFound
	}
	s.analytics.TrackEngagement(ctx, contentID, domain.EngagementComment)
	return comment, verdict, nil
}

// DeleteComment removes a comment subtree and takes every removed comment
// off the analytics count.
func (s *EngagementService) DeleteComment(ctx context.Context, contentID, commentID string) (int, error) {
	removed := s.comments.Delete(ctx, contentID, commentID)
	if removed == 0 {
		return 0, domain.ErrCommentNotFound
	}
	s.analytics.AdjustEngagement(ctx, contentID, domain.EngagementComment, -int64(removed))
	return removed, nil
}

func (s *EngagementService) Share(ctx context.Context, contentID, userID, platform string) int {
	count := s.social.Share(ctx, contentID, userID, platform)
	s.analytics.TrackEngagement(ctx, contentID, domain.EngagementShare)
	return count
}

func (s *EngagementService) SubscribeChannel(ctx context.Context, userID, channelID string) bool {
	if !s.social.Subscribe(ctx, userID, channelID) {
		return false
	}
	s.analytics.RecordSubscription(ctx, channelID, 1)
	return true
}

func (s *EngagementService) UnsubscribeChannel(ctx context.Context, userID, channelID string) bool {
	if !s.social.Unsubscribe(ctx, userID, channelID) {
		return false
	}
	s.analytics.RecordSubscription(ctx, channelID, -1)
	return true
}

// Watch records a finished playback in analytics and, for known items and
// signed-in users, in the recommendation history. Catalog metadata fills in
// channel and duration when the player left them out.
func (s *EngagementService) Watch(ctx context.Context, ev domain.ViewEvent) error {
	item, err := s.catalog.GetByID(ctx, ev.ContentID)
	if err != nil && !errors.Is(err, domain.ErrContentNotFound) {
		return fmt.Errorf("failed to load content: %w", err)
	}

	if item != nil {
		if ev.ChannelID == "" {
			ev.ChannelID = item.ChannelID
		}
		if ev.DurationSeconds <= 0 {
			ev.DurationSeconds = float64(item.DurationSeconds)
		}
	}

	s.analytics.TrackView(ctx, ev)

	if item != nil && ev.UserID != "" {
		s.recommendations.RecordWatch(ctx, ev.UserID, *item)
	}
	return nil
}

// SuperChat charges the chat and credits the net amount to channel analytics.
func (s *EngagementService) SuperChat(ctx context.Context, req SuperChatRequest) domain.TransactionResult {
	result := s.monetization.SuperChat(ctx, req)
	s.creditChannel(ctx, req.ChannelID, domain.RevenueSuperChat, result)
	return result
}

func (s *EngagementService) Membership(ctx context.Context, channelID, userID string, tier domain.MembershipTier) domain.TransactionResult {
	result := s.monetization.Membership(ctx, channelID, userID, tier)
	s.creditChannel(ctx, channelID, domain.RevenueMemberships, result)
	return result
}

func (s *EngagementService) Merchandise(ctx context.Context, channelID, itemID string, unitPrice float64, quantity int) domain.TransactionResult {
	result := s.monetization.Merchandise(ctx, channelID, itemID, unitPrice, quantity)
	s.creditChannel(ctx, channelID, domain.RevenueMerchandise, result)
	return result
}

func (s *EngagementService) Sponsorship(ctx context.Context, channelID, sponsor string, amount float64) domain.TransactionResult {
	result := s.monetization.Sponsorship(ctx, channelID, sponsor, amount)
	s.creditChannel(ctx, channelID, domain.RevenueSponsorships, result)
	return result
}

func (s *EngagementService) creditChannel(ctx context.Context, channelID string, source domain.RevenueSource, result domain.TransactionResult) {
	if !result.Success {
		s.log.Debug(ctx, "Transaction declined", map[string]interface{}{
			"channel_id": channelID,
			"source":     source,
			"reason":     result.Reason,
		})
		return
	}
	s.analytics.RecordRevenue(ctx, channelID, source, result.Net)
}
