package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

const commentEngine = "comments"

// CommentService stores threaded comments per content item. Top-level
// comments are kept newest first; replies in the order they were posted.
type CommentService struct {
	mu       sync.Mutex
	threads  map[string][]*domain.Comment
	snapshot *snapshotter
	notifier Notifier
	log      *logger.Logger
	nowFn    func() time.Time
}

func NewCommentService(ctx context.Context, opts EngineOptions, notifier Notifier) *CommentService {
	s := &CommentService{
		threads:  make(map[string][]*domain.Comment),
		snapshot: newSnapshotter(opts, commentEngine),
		notifier: notifierOrNop(notifier),
		log:      opts.logger(commentEngine),
		nowFn:    opts.clock(),
	}

	var loaded map[string][]*domain.Comment
	if s.snapshot.load(ctx, &loaded) && loaded != nil {
		s.threads = loaded
	}
	return s
}

// Post adds a comment. With a parentID the comment becomes a reply anywhere
// in the thread; nil is returned if that parent does not exist.
func (s *CommentService) Post(ctx context.Context, contentID string, author domain.Author, text, parentID string) *domain.Comment {
	metrics.EngineOperations.WithLabelValues(commentEngine, "post").Inc()

	comment := &domain.Comment{
		ID:           uuid.New().String(),
		ContentID:    contentID,
		ParentID:     parentID,
		AuthorID:     author.ID,
		AuthorName:   author.Name,
		AuthorAvatar: author.Avatar,
		Text:         strings.TrimSpace(text),
		Timestamp:    s.nowFn(),
		Replies:      []*domain.Comment{},
	}

	s.mu.Lock()
	var parentAuthor string
	if parentID == "" {
		s.threads[contentID] = append([]*domain.Comment{comment}, s.threads[contentID]...)
	} else {
		parent := findComment(s.threads[contentID], parentID)
		if parent == nil {
			s.mu.Unlock()
			return nil
		}
		parent.Replies = append(parent.Replies, comment)
		parentAuthor = parent.AuthorID
	}
	out := cloneComment(comment)
	s.snapshot.save(ctx, s.threads)
	s.mu.Unlock()

	if parentAuthor != "" && parentAuthor != author.ID {
		s.notify(ctx, domain.Event{
			Type:       domain.EventCommentReply,
			EntityID:   contentID,
			Recipient:  parentAuthor,
			Message:    author.Name + " replied to your comment",
			Attributes: map[string]string{"comment_id": comment.ID, "parent_id": parentID},
			OccurredAt: comment.Timestamp,
		})
	}
	return out
}

// Edit replaces the text of a comment. Only its author may edit it.
func (s *CommentService) Edit(ctx context.Context, contentID, commentID, authorID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := findComment(s.threads[contentID], commentID)
	if c == nil || c.AuthorID != authorID {
		return false
	}
	c.Text = strings.TrimSpace(text)
	c.Edited = true
	s.snapshot.save(ctx, s.threads)
	return true
}

// Delete removes a comment together with its whole reply subtree and returns
// how many comments went away (0 when commentID is unknown).
func (s *CommentService) Delete(ctx context.Context, contentID, commentID string) int {
	metrics.EngineOperations.WithLabelValues(commentEngine, "delete").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.threads[contentID]
	removed := removeComment(&thread, commentID)
	if removed == nil {
		return 0
	}
	if len(thread) == 0 {
		delete(s.threads, contentID)
	} else {
		s.threads[contentID] = thread
	}
	s.snapshot.save(ctx, s.threads)
	return removed.SubtreeSize()
}

// Like toggles userID's like on a comment. ok is false if it does not exist.
func (s *CommentService) Like(ctx context.Context, contentID, commentID, userID string) (action domain.ToggleAction, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := findComment(s.threads[contentID], commentID)
	if c == nil {
		return "", false
	}
	if c.LikedBy == nil {
		c.LikedBy = make(map[string]bool)
	}
	if c.LikedBy[userID] {
		delete(c.LikedBy, userID)
		action = domain.ToggleRemoved
	} else {
		c.LikedBy[userID] = true
		action = domain.ToggleAdded
	}
	c.LikeCount = len(c.LikedBy)
	s.snapshot.save(ctx, s.threads)
	return action, true
}

// Pin pins a top-level comment and unpins every other one on the same item.
func (s *CommentService) Pin(ctx context.Context, contentID, commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.threads[contentID]
	var target *domain.Comment
	for _, c := range thread {
		if c.ID == commentID {
			target = c
		}
	}
	if target == nil {
		return false
	}
	for _, c := range thread {
		c.Pinned = false
	}
	target.Pinned = true
	s.snapshot.save(ctx, s.threads)
	return true
}

func (s *CommentService) Unpin(ctx context.Context, contentID, commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.threads[contentID] {
		if c.ID == commentID && c.Pinned {
			c.Pinned = false
			s.snapshot.save(ctx, s.threads)
			return true
		}
	}
	return false
}

// Heart toggles the creator heart on a comment.
func (s *CommentService) Heart(ctx context.Context, contentID, commentID string) bool {
	s.mu.Lock()
	c := findComment(s.threads[contentID], commentID)
	if c == nil {
		s.mu.Unlock()
		return false
	}
	c.HeartedByCreator = !c.HeartedByCreator
	hearted, author := c.HeartedByCreator, c.AuthorID
	s.snapshot.save(ctx, s.threads)
	s.mu.Unlock()

	if hearted {
		s.notify(ctx, domain.Event{
			Type:       domain.EventCommentHearted,
			EntityID:   contentID,
			Recipient:  author,
			Message:    "The creator hearted your comment",
			Attributes: map[string]string{"comment_id": commentID},
			OccurredAt: s.nowFn(),
		})
	}
	return true
}

// Get returns a copy of a single comment, or nil.
func (s *CommentService) Get(contentID, commentID string) *domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := findComment(s.threads[contentID], commentID)
	if c == nil {
		return nil
	}
	return cloneComment(c)
}

// List returns the top-level comments of contentID. Top puts the pinned
// comment first and then orders by like count; Newest orders by timestamp.
// Ties keep their stored order.
func (s *CommentService) List(contentID string, sortBy domain.CommentSort) []*domain.Comment {
	s.mu.Lock()
	thread := s.threads[contentID]
	out := make([]*domain.Comment, 0, len(thread))
	for _, c := range thread {
		out = append(out, cloneComment(c))
	}
	s.mu.Unlock()

	switch sortBy {
	case domain.CommentSortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Pinned != out[j].Pinned {
				return out[i].Pinned
			}
			return out[i].LikeCount > out[j].LikeCount
		})
	}
	return out
}

// Count is the number of comments on contentID including every nested reply.
func (s *CommentService) Count(contentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.threads[contentID] {
		n += c.SubtreeSize()
	}
	return n
}

func (s *CommentService) notify(ctx context.Context, event domain.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Error(ctx, "Failed to notify", err, map[string]interface{}{
			"event_type": event.Type,
			"entity_id":  event.EntityID,
		})
	}
}

func findComment(list []*domain.Comment, id string) *domain.Comment {
	for _, c := range list {
		if c.ID == id {
			return c
		}
		if found := findComment(c.Replies, id); found != nil {
			return found
		}
	}
	return nil
}

// removeComment unlinks id from whichever list owns it.
func removeComment(list *[]*domain.Comment, id string) *domain.Comment {
	for i, c := range *list {
		if c.ID == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return c
		}
		if removed := removeComment(&c.Replies, id); removed != nil {
			return removed
		}
	}
	return nil
}

func cloneComment(c *domain.Comment) *domain.Comment {
	out := *c
	if c.LikedBy != nil {
		out.LikedBy = make(map[string]bool, len(c.LikedBy))
		for k, v := range c.LikedBy {
			out.LikedBy[k] = v
		}
	}
	out.Replies = make([]*domain.Comment, 0, len(c.Replies))
	for _, r := range c.Replies {
		out.Replies = append(out.Replies, cloneComment(r))
	}
	return &out
}
