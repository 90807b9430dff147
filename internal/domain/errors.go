package domain

import "errors"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrContentNotFound  = errors.New("content not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrActionNotFound   = errors.New("moderation action not found")
	ErrActionNotPending = errors.New("moderation action already reviewed")
	ErrInvalidDecision  = errors.New("invalid review decision")
	ErrInvalidRule      = errors.New("invalid moderation rule")
	ErrUnknownQuality   = errors.New("unknown quality level")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnknownTier      = errors.New("unknown membership tier")
	ErrFeatureDisabled  = errors.New("feature disabled")
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
	ErrInvalidExport    = errors.New("unsupported export format")
)
