package domain

import "time"

type ModerationActionType string

const (
	ActionFlagged ModerationActionType = "flagged"
	ActionHidden  ModerationActionType = "hidden"
	ActionDeleted ModerationActionType = "deleted"
	ActionWarned  ModerationActionType = "warned"
)

type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

func (s ModerationStatus) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// ModerationAction is created by a rule match or a user report and only
// leaves Pending through an explicit review.
type ModerationAction struct {
	ID          string               `json:"id"`
	ContentID   string               `json:"content_id"`
	ContentType string               `json:"content_type"`
	AuthorID    string               `json:"author_id,omitempty"`
	Action      ModerationActionType `json:"action"`
	Reason      string               `json:"reason"`
	Timestamp   time.Time            `json:"timestamp"`
	ReviewedBy  *string              `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time           `json:"reviewed_at,omitempty"`
	Status      ModerationStatus     `json:"status"`
}

type ToxicityCategories struct {
	Profanity float64 `json:"profanity"`
	Insult    float64 `json:"insult"`
	Threat    float64 `json:"threat"`
	Spam      float64 `json:"spam"`
	Sexual    float64 `json:"sexual"`
}

func (c ToxicityCategories) Sum() float64 {
	return c.Profanity + c.Insult + c.Threat + c.Spam + c.Sexual
}

type ToxicityScore struct {
	Overall    float64            `json:"overall"`
	Categories ToxicityCategories `json:"categories"`
}

type RuleType string

const (
	RuleKeyword  RuleType = "keyword"
	RuleRegex    RuleType = "regex"
	RuleSpam     RuleType = "spam"
	RuleToxicity RuleType = "toxicity"
)

type RuleAction string

const (
	RuleFlag   RuleAction = "flag"
	RuleHide   RuleAction = "hide"
	RuleDelete RuleAction = "delete"
	RuleWarn   RuleAction = "warn"
)

// ActionType maps a rule verb onto the recorded action.
func (a RuleAction) ActionType() ModerationActionType {
	switch a {
	case RuleHide:
		return ActionHidden
	case RuleDelete:
		return ActionDeleted
	case RuleWarn:
		return ActionWarned
	default:
		return ActionFlagged
	}
}

type ModerationRule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      RuleType   `json:"type"`
	Keywords  []string   `json:"keywords,omitempty"`
	Pattern   string     `json:"pattern,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
	Action    RuleAction `json:"action"`
	Enabled   bool       `json:"enabled"`
}

type ModerationResult struct {
	Allowed bool              `json:"allowed"`
	Reason  string            `json:"reason,omitempty"`
	Action  *ModerationAction `json:"action,omitempty"`
	Score   ToxicityScore     `json:"score"`
}

type ContentMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type CopyrightCheck struct {
	Flagged bool     `json:"flagged"`
	Matches []string `json:"matches"`
}
