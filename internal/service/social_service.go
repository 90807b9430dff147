package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
)

const socialEngine = "social"

type socialState struct {
	Interactions  map[string][]domain.Interaction  `json:"interactions"`
	Subscriptions map[string][]domain.Subscription `json:"subscriptions"`
	Shares        map[string][]domain.Share        `json:"shares"`
}

func newSocialState() socialState {
	return socialState{
		Interactions:  make(map[string][]domain.Interaction),
		Subscriptions: make(map[string][]domain.Subscription),
		Shares:        make(map[string][]domain.Share),
	}
}

// SocialService is the interaction store: likes, dislikes, saves,
// channel subscriptions and shares. Interactions are kept per user; counts
// scan every user's list and are not cached.
type SocialService struct {
	mu       sync.Mutex
	state    socialState
	snapshot *snapshotter
	nowFn    func() time.Time
}

func NewSocialService(ctx context.Context, opts EngineOptions) *SocialService {
	s := &SocialService{
		state:    newSocialState(),
		snapshot: newSnapshotter(opts, socialEngine),
		nowFn:    opts.clock(),
	}

	var loaded socialState
	if s.snapshot.load(ctx, &loaded) {
		if loaded.Interactions != nil {
			s.state.Interactions = loaded.Interactions
		}
		if loaded.Subscriptions != nil {
			s.state.Subscriptions = loaded.Subscriptions
		}
		if loaded.Shares != nil {
			s.state.Shares = loaded.Shares
		}
	}
	return s
}

// Like toggles userID's like on contentID, clearing a dislike first.
func (s *SocialService) Like(ctx context.Context, contentID, userID string) domain.ToggleResult {
	return s.react(ctx, contentID, userID, domain.InteractionLike, domain.InteractionDislike)
}

// Dislike toggles userID's dislike on contentID, clearing a like first.
func (s *SocialService) Dislike(ctx context.Context, contentID, userID string) domain.ToggleResult {
	return s.react(ctx, contentID, userID, domain.InteractionDislike, domain.InteractionLike)
}

func (s *SocialService) react(ctx context.Context, contentID, userID string, kind, opposite domain.InteractionKind) domain.ToggleResult {
	metrics.EngineOperations.WithLabelValues(socialEngine, string(kind)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.ToggleResult
	if s.remove(userID, contentID, opposite) {
		cleared := opposite
		result.Cleared = &cleared
	}
	result.Action = s.toggle(userID, contentID, kind)

	s.snapshot.save(ctx, s.state)
	return result
}

// Save toggles contentID in userID's saved list.
func (s *SocialService) Save(ctx context.Context, contentID, userID string) domain.ToggleResult {
	metrics.EngineOperations.WithLabelValues(socialEngine, "save").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	result := domain.ToggleResult{Action: s.toggle(userID, contentID, domain.InteractionSave)}
	s.snapshot.save(ctx, s.state)
	return result
}

func (s *SocialService) toggle(userID, contentID string, kind domain.InteractionKind) domain.ToggleAction {
	if s.remove(userID, contentID, kind) {
		return domain.ToggleRemoved
	}
	s.state.Interactions[userID] = append(s.state.Interactions[userID], domain.Interaction{
		UserID:    userID,
		ContentID: contentID,
		Kind:      kind,
		Timestamp: s.nowFn(),
	})
	return domain.ToggleAdded
}

// remove drops the matching interaction and reports whether one existed.
func (s *SocialService) remove(userID, contentID string, kind domain.InteractionKind) bool {
	list := s.state.Interactions[userID]
	for i, in := range list {
		if in.ContentID == contentID && in.Kind == kind {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s.state.Interactions, userID)
			} else {
				s.state.Interactions[userID] = list
			}
			return true
		}
	}
	return false
}

func (s *SocialService) has(userID, contentID string, kind domain.InteractionKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range s.state.Interactions[userID] {
		if in.ContentID == contentID && in.Kind == kind {
			return true
		}
	}
	return false
}

func (s *SocialService) count(contentID string, kind domain.InteractionKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, list := range s.state.Interactions {
		for _, in := range list {
			if in.ContentID == contentID && in.Kind == kind {
				n++
			}
		}
	}
	return n
}

func (s *SocialService) HasLiked(contentID, userID string) bool {
	return s.has(userID, contentID, domain.InteractionLike)
}

func (s *SocialService) HasDisliked(contentID, userID string) bool {
	return s.has(userID, contentID, domain.InteractionDislike)
}

func (s *SocialService) HasSaved(contentID, userID string) bool {
	return s.has(userID, contentID, domain.InteractionSave)
}

func (s *SocialService) LikeCount(contentID string) int {
	return s.count(contentID, domain.InteractionLike)
}

func (s *SocialService) DislikeCount(contentID string) int {
	return s.count(contentID, domain.InteractionDislike)
}

// SavedItems lists userID's saved content ids, most recently saved first.
func (s *SocialService) SavedItems(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved []domain.Interaction
	for _, in := range s.state.Interactions[userID] {
		if in.Kind == domain.InteractionSave {
			saved = append(saved, in)
		}
	}
	sort.SliceStable(saved, func(i, j int) bool {
		return saved[i].Timestamp.After(saved[j].Timestamp)
	})

	ids := make([]string, 0, len(saved))
	for _, in := range saved {
		ids = append(ids, in.ContentID)
	}
	return ids
}

// Subscribe adds a channel subscription. Returns false if it already existed.
func (s *SocialService) Subscribe(ctx context.Context, userID, channelID string) bool {
	metrics.EngineOperations.WithLabelValues(socialEngine, "subscribe").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.state.Subscriptions[userID] {
		if sub.ChannelID == channelID {
			return false
		}
	}
	s.state.Subscriptions[userID] = append(s.state.Subscriptions[userID], domain.Subscription{
		UserID:    userID,
		ChannelID: channelID,
		CreatedAt: s.nowFn(),
	})
	s.snapshot.save(ctx, s.state)
	return true
}

// Unsubscribe removes a channel subscription. Returns false if there was none.
func (s *SocialService) Unsubscribe(ctx context.Context, userID, channelID string) bool {
	metrics.EngineOperations.WithLabelValues(socialEngine, "unsubscribe").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.state.Subscriptions[userID]
	for i, sub := range subs {
		if sub.ChannelID != channelID {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(s.state.Subscriptions, userID)
		} else {
			s.state.Subscriptions[userID] = subs
		}
		s.snapshot.save(ctx, s.state)
		return true
	}
	return false
}

func (s *SocialService) IsSubscribed(userID, channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.state.Subscriptions[userID] {
		if sub.ChannelID == channelID {
			return true
		}
	}
	return false
}

// Subscriptions returns the channel ids userID follows in subscription order.
func (s *SocialService) Subscriptions(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.state.Subscriptions[userID]
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ChannelID)
	}
	return ids
}

func (s *SocialService) SubscriberCount(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, subs := range s.state.Subscriptions {
		for _, sub := range subs {
			if sub.ChannelID == channelID {
				n++
			}
		}
	}
	return n
}

// Share records a share of contentID and returns the new share count.
func (s *SocialService) Share(ctx context.Context, contentID, userID, platform string) int {
	metrics.EngineOperations.WithLabelValues(socialEngine, "share").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Shares[contentID] = append(s.state.Shares[contentID], domain.Share{
		UserID:    userID,
		ContentID: contentID,
		Platform:  platform,
		Timestamp: s.nowFn(),
	})
	s.snapshot.save(ctx, s.state)
	return len(s.state.Shares[contentID])
}

func (s *SocialService) ShareCount(contentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.state.Shares[contentID])
}
