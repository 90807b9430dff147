package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

const (
	moderationEngine = "moderation"

	blockThreshold = 0.7
	flagThreshold  = 0.5

	blockedWordWeight = 0.4
	spamPatternWeight = 0.3
	capsWeight        = 0.3
	repetitionWeight  = 0.2
	threatWeight      = 0.5
	sexualWeight      = 0.4

	capsMinLetters = 10
	repetitionRun  = 5
)

var DefaultBlockedWords = []string{
	"idiot", "stupid", "moron", "dumb", "loser", "jerk", "trash", "pathetic", "wtf", "stfu",
}

var (
	spamPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://\S+`),
		regexp.MustCompile(`(?i)\b(buy now|click here|free money|limited offer|act now)\b`),
		regexp.MustCompile(`(?i)\b(sub4sub|subscribe to my channel|check out my channel)\b`),
		regexp.MustCompile(`(?i)\b(whatsapp|telegram)\s*[:+]?\s*\+?\d{6,}`),
	}

	threatPhrases = []string{"kill you", "hurt you", "find where you live", "watch your back", "you will die"}
	sexualTerms   = []string{"nsfw", "nude", "nudes", "xxx", "onlyfans"}

	copyrightMarkers = []string{
		"official music video", "full movie", "full album", "all rights reserved",
		"official trailer", "copyrighted", "vevo",
	}
)

type ModerationConfig struct {
	BlockedWords []string
}

type ModerateRequest struct {
	ContentID   string
	ContentType string
	AuthorID    string
	Text        string
}

type moderationState struct {
	Actions []*domain.ModerationAction `json:"actions"`
	Rules   []domain.ModerationRule    `json:"rules"`
	Strikes map[string]int             `json:"strikes"`
}

// ModerationService scores text with additive heuristics, applies the rule
// list and keeps the moderation queue. Actions leave Pending only through
// Review.
type ModerationService struct {
	mu       sync.Mutex
	blocked  map[string]bool
	state    moderationState
	patterns map[string]*regexp.Regexp
	snapshot *snapshotter
	notifier Notifier
	log      *logger.Logger
	nowFn    func() time.Time
}

func DefaultModerationRules() []domain.ModerationRule {
	return []domain.ModerationRule{
		{ID: "spam", Name: "Spam filter", Type: domain.RuleSpam, Action: domain.RuleHide, Enabled: true},
		{ID: "mild-toxicity", Name: "Mild toxicity", Type: domain.RuleToxicity, Threshold: 0.3, Action: domain.RuleWarn, Enabled: true},
	}
}

func NewModerationService(ctx context.Context, opts EngineOptions, cfg ModerationConfig, notifier Notifier) *ModerationService {
	words := cfg.BlockedWords
	if len(words) == 0 {
		words = DefaultBlockedWords
	}
	blocked := make(map[string]bool, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			blocked[w] = true
		}
	}

	s := &ModerationService{
		blocked: blocked,
		state: moderationState{
			Rules:   DefaultModerationRules(),
			Strikes: make(map[string]int),
		},
		patterns: make(map[string]*regexp.Regexp),
		snapshot: newSnapshotter(opts, moderationEngine),
		notifier: notifierOrNop(notifier),
		log:      opts.logger(moderationEngine),
		nowFn:    opts.clock(),
	}

	var loaded moderationState
	if s.snapshot.load(ctx, &loaded) {
		s.state.Actions = loaded.Actions
		if loaded.Rules != nil {
			s.state.Rules = loaded.Rules
		}
		if loaded.Strikes != nil {
			s.state.Strikes = loaded.Strikes
		}
	}

	for _, rule := range s.state.Rules {
		if rule.Type != domain.RuleRegex {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			s.log.Warn(ctx, "Skipping moderation rule with invalid pattern", map[string]interface{}{
				"rule_id": rule.ID,
				"error":   err.Error(),
			})
			continue
		}
		s.patterns[rule.ID] = re
	}
	return s
}

// Toxicity scores text. Each category accumulates independently and the
// overall score is their mean, capped at 1.
func (s *ModerationService) Toxicity(text string) domain.ToxicityScore {
	var cats domain.ToxicityCategories
	lower := strings.ToLower(text)

	for _, word := range tokenize(lower) {
		if s.blocked[word] {
			cats.Profanity += blockedWordWeight
		}
	}

	for _, re := range spamPatterns {
		if re.MatchString(text) {
			cats.Spam += spamPatternWeight
		}
	}

	if capsRatio(text) > 0.5 {
		cats.Insult += capsWeight
	}

	if hasRepeatedRun(text, repetitionRun) {
		cats.Spam += repetitionWeight
	}

	for _, phrase := range threatPhrases {
		if strings.Contains(lower, phrase) {
			cats.Threat += threatWeight
		}
	}
	for _, term := range sexualTerms {
		for _, word := range tokenize(lower) {
			if word == term {
				cats.Sexual += sexualWeight
			}
		}
	}

	return domain.ToxicityScore{
		Overall:    math.Min(cats.Sum()/5, 1),
		Categories: cats,
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// capsRatio is the share of upper-case letters. Short texts score zero.
func capsRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < capsMinLetters {
		return 0
	}
	return float64(upper) / float64(letters)
}

// hasRepeatedRun reports whether any non-space character repeats n or more
// times in a row.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// IsSpam flags long low-variety messages and anything matching a spam pattern.
func (s *ModerationService) IsSpam(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 10 {
		unique := make(map[string]bool, len(words))
		for _, w := range words {
			unique[w] = true
		}
		if float64(len(unique))/float64(len(words)) < 0.3 {
			return true
		}
	}
	for _, re := range spamPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Moderate decides whether text may be published. Scores above the block
// threshold are refused and recorded as a pending deletion; scores above the
// flag threshold are published and flagged; otherwise the first matching
// rule decides.
func (s *ModerationService) Moderate(ctx context.Context, req ModerateRequest) domain.ModerationResult {
	score := s.Toxicity(req.Text)
	result := domain.ModerationResult{Allowed: true, Score: score}

	s.mu.Lock()
	switch {
	case score.Overall > blockThreshold:
		result.Allowed = false
		result.Reason = "Content violates community guidelines"
		result.Action = s.record(req, domain.ActionDeleted, fmt.Sprintf("toxicity %.2f", score.Overall))
		if req.AuthorID != "" {
			s.state.Strikes[req.AuthorID]++
		}
		metrics.ModerationDecisions.WithLabelValues("blocked").Inc()

	case score.Overall > flagThreshold:
		result.Reason = "Content flagged for review"
		result.Action = s.record(req, domain.ActionFlagged, fmt.Sprintf("toxicity %.2f", score.Overall))
		metrics.ModerationDecisions.WithLabelValues("flagged").Inc()

	default:
		if rule, ok := s.matchRule(req.Text, score); ok {
			result.Allowed = rule.Action != domain.RuleDelete
			result.Reason = "Matched rule: " + rule.Name
			result.Action = s.record(req, rule.Action.ActionType(), "rule "+rule.ID)
			if !result.Allowed && req.AuthorID != "" {
				s.state.Strikes[req.AuthorID]++
			}
			metrics.ModerationDecisions.WithLabelValues("rule_" + string(rule.Action)).Inc()
		} else {
			metrics.ModerationDecisions.WithLabelValues("allowed").Inc()
		}
	}

	var action domain.ModerationAction
	if result.Action != nil {
		action = *result.Action
		result.Action = &action
		s.snapshot.save(ctx, s.state)
	}
	s.mu.Unlock()

	if result.Action != nil {
		s.log.Info(ctx, "Moderation action recorded", map[string]interface{}{
			"action_id":  action.ID,
			"content_id": action.ContentID,
			"action":     action.Action,
			"allowed":    result.Allowed,
			"overall":    score.Overall,
		})
		s.notify(ctx, domain.Event{
			Type:       domain.EventModerationAction,
			EntityID:   action.ContentID,
			Recipient:  action.AuthorID,
			Message:    fmt.Sprintf("Your %s was %s", contentTypeOrDefault(action.ContentType), action.Action),
			Attributes: map[string]string{"action_id": action.ID, "reason": action.Reason},
			OccurredAt: action.Timestamp,
		})
	}
	return result
}

func (s *ModerationService) matchRule(text string, score domain.ToxicityScore) (domain.ModerationRule, bool) {
	lower := strings.ToLower(text)
	for _, rule := range s.state.Rules {
		if !rule.Enabled {
			continue
		}
		switch rule.Type {
		case domain.RuleKeyword:
			for _, kw := range rule.Keywords {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					return rule, true
				}
			}
		case domain.RuleRegex:
			if re, ok := s.patterns[rule.ID]; ok && re.MatchString(text) {
				return rule, true
			}
		case domain.RuleSpam:
			if s.IsSpam(text) {
				return rule, true
			}
		case domain.RuleToxicity:
			if score.Overall >= rule.Threshold {
				return rule, true
			}
		}
	}
	return domain.ModerationRule{}, false
}

// record appends a pending action. Callers hold s.mu.
func (s *ModerationService) record(req ModerateRequest, kind domain.ModerationActionType, reason string) *domain.ModerationAction {
	action := &domain.ModerationAction{
		ID:          uuid.New().String(),
		ContentID:   req.ContentID,
		ContentType: contentTypeOrDefault(req.ContentType),
		AuthorID:    req.AuthorID,
		Action:      kind,
		Reason:      reason,
		Timestamp:   s.nowFn(),
		Status:      domain.StatusPending,
	}
	s.state.Actions = append(s.state.Actions, action)
	return action
}

func contentTypeOrDefault(t string) string {
	if t == "" {
		return "comment"
	}
	return t
}

// Report records a user report as a pending flag.
func (s *ModerationService) Report(ctx context.Context, contentID, contentType, reporterID, reason string) *domain.ModerationAction {
	metrics.EngineOperations.WithLabelValues(moderationEngine, "report").Inc()

	s.mu.Lock()
	action := s.record(ModerateRequest{ContentID: contentID, ContentType: contentType}, domain.ActionFlagged, "reported: "+reason)
	out := *action
	s.snapshot.save(ctx, s.state)
	s.mu.Unlock()

	s.log.Info(ctx, "Content reported", map[string]interface{}{
		"action_id":   out.ID,
		"content_id":  contentID,
		"reporter_id": reporterID,
	})
	return &out
}

// Review moves a pending action to approved or rejected. It happens once.
func (s *ModerationService) Review(ctx context.Context, actionID string, decision domain.ModerationStatus, reviewerID string) (*domain.ModerationAction, error) {
	if !decision.IsDecision() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidDecision, decision)
	}

	s.mu.Lock()
	var action *domain.ModerationAction
	for _, a := range s.state.Actions {
		if a.ID == actionID {
			action = a
			break
		}
	}
	if action == nil {
		s.mu.Unlock()
		return nil, domain.ErrActionNotFound
	}
	if action.Status != domain.StatusPending {
		s.mu.Unlock()
		return nil, domain.ErrActionNotPending
	}

	now := s.nowFn()
	reviewer := reviewerID
	action.Status = decision
	action.ReviewedBy = &reviewer
	action.ReviewedAt = &now
	out := *action
	s.snapshot.save(ctx, s.state)
	s.mu.Unlock()

	metrics.ModerationDecisions.WithLabelValues("review_" + string(decision)).Inc()
	s.log.Info(ctx, "Moderation action reviewed", map[string]interface{}{
		"action_id":   actionID,
		"decision":    decision,
		"reviewer_id": reviewerID,
	})
	s.notify(ctx, domain.Event{
		Type:       domain.EventModerationReview,
		EntityID:   out.ContentID,
		Recipient:  out.AuthorID,
		Message:    fmt.Sprintf("A moderation decision on your %s was %s", out.ContentType, decision),
		Attributes: map[string]string{"action_id": out.ID},
		OccurredAt: now,
	})
	return &out, nil
}

// Pending lists unreviewed actions, oldest first.
func (s *ModerationService) Pending() []domain.ModerationAction {
	return s.filter(func(a *domain.ModerationAction) bool { return a.Status == domain.StatusPending })
}

func (s *ModerationService) ActionsFor(contentID string) []domain.ModerationAction {
	return s.filter(func(a *domain.ModerationAction) bool { return a.ContentID == contentID })
}

func (s *ModerationService) filter(keep func(*domain.ModerationAction) bool) []domain.ModerationAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.ModerationAction{}
	for _, a := range s.state.Actions {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Strikes is how many times authorID had content blocked.
func (s *ModerationService) Strikes(authorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Strikes[authorID]
}

// AddRule validates and appends a rule. Rules are evaluated in insertion order.
func (s *ModerationService) AddRule(ctx context.Context, rule domain.ModerationRule) (domain.ModerationRule, error) {
	if strings.TrimSpace(rule.Name) == "" {
		return rule, fmt.Errorf("%w: name is required", domain.ErrInvalidRule)
	}
	switch rule.Action {
	case domain.RuleFlag, domain.RuleHide, domain.RuleDelete, domain.RuleWarn:
	default:
		return rule, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidRule, rule.Action)
	}

	var re *regexp.Regexp
	switch rule.Type {
	case domain.RuleKeyword:
		if len(rule.Keywords) == 0 {
			return rule, fmt.Errorf("%w: keyword rule needs keywords", domain.ErrInvalidRule)
		}
	case domain.RuleRegex:
		compiled, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return rule, fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
		}
		re = compiled
	case domain.RuleSpam:
	case domain.RuleToxicity:
		if rule.Threshold <= 0 || rule.Threshold > 1 {
			return rule, fmt.Errorf("%w: threshold must be in (0, 1]", domain.ErrInvalidRule)
		}
	default:
		return rule, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidRule, rule.Type)
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.Rules {
		if existing.ID == rule.ID {
			return rule, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidRule, rule.ID)
		}
	}
	s.state.Rules = append(s.state.Rules, rule)
	if re != nil {
		s.patterns[rule.ID] = re
	}
	s.snapshot.save(ctx, s.state)
	return rule, nil
}

func (s *ModerationService) RemoveRule(ctx context.Context, ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rule := range s.state.Rules {
		if rule.ID == ruleID {
			s.state.Rules = append(s.state.Rules[:i:i], s.state.Rules[i+1:]...)
			delete(s.patterns, ruleID)
			s.snapshot.save(ctx, s.state)
			return true
		}
	}
	return false
}

func (s *ModerationService) Rules() []domain.ModerationRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ModerationRule{}, s.state.Rules...)
}

// CheckCopyright looks for well-known rights-holder markers in metadata.
// It is a keyword heuristic, not a fingerprint match.
func (s *ModerationService) CheckCopyright(meta domain.ContentMetadata) domain.CopyrightCheck {
	haystack := strings.ToLower(meta.Title + "\n" + meta.Description + "\n" + strings.Join(meta.Tags, "\n"))

	check := domain.CopyrightCheck{Matches: []string{}}
	for _, marker := range copyrightMarkers {
		if strings.Contains(haystack, marker) {
			check.Matches = append(check.Matches, marker)
		}
	}
	check.Flagged = len(check.Matches) > 0
	return check
}

func (s *ModerationService) notify(ctx context.Context, event domain.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Error(ctx, "Failed to notify", err, map[string]interface{}{
			"event_type": event.Type,
			"entity_id":  event.EntityID,
		})
	}
}
