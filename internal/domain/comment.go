package domain

import "time"

type CommentSort string

const (
	CommentSortTop    CommentSort = "top"
	CommentSortNewest CommentSort = "newest"
)

// Comment owns its reply subtree exclusively.
type Comment struct {
	ID               string          `json:"id"`
	ContentID        string          `json:"content_id"`
	ParentID         string          `json:"parent_id,omitempty"`
	AuthorID         string          `json:"author_id"`
	AuthorName       string          `json:"author_name"`
	AuthorAvatar     string          `json:"author_avatar,omitempty"`
	Text             string          `json:"text"`
	Timestamp        time.Time       `json:"timestamp"`
	LikeCount        int             `json:"like_count"`
	LikedBy          map[string]bool `json:"liked_by,omitempty"`
	Replies          []*Comment      `json:"replies"`
	Edited           bool            `json:"edited"`
	Pinned           bool            `json:"pinned"`
	HeartedByCreator bool            `json:"hearted_by_creator"`
}

// Author identifies who is posting a comment.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// SubtreeSize counts the comment itself plus every reply below it.
func (c *Comment) SubtreeSize() int {
	n := 1
	for _, r := range c.Replies {
		n += r.SubtreeSize()
	}
	return n
}
