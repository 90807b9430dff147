package service

import (
	"context"
	"strings"
	"testing"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModeration(t *testing.T) (*ModerationService, *recordingNotifier, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	s := NewModerationService(context.Background(), testOptions(store, newTestClock()), ModerationConfig{}, notifier)
	return s, notifier, store
}

func TestModerationService_ToxicityCategories(t *testing.T) {
	s, _, _ := newTestModeration(t)

	clean := s.Toxicity("What a lovely video, thanks for sharing")
	assert.Zero(t, clean.Overall)

	insult := s.Toxicity("you are an idiot")
	assert.InDelta(t, 0.4, insult.Categories.Profanity, 1e-9)
	assert.InDelta(t, 0.08, insult.Overall, 1e-9)

	shouting := s.Toxicity("THIS IS THE BEST VIDEO EVER")
	assert.InDelta(t, 0.3, shouting.Categories.Insult, 1e-9)

	spam := s.Toxicity("click here https://spam.example now!!!!!")
	assert.InDelta(t, 0.8, spam.Categories.Spam, 1e-9)

	threat := s.Toxicity("watch your back")
	assert.InDelta(t, 0.5, threat.Categories.Threat, 1e-9)
}

func TestModerationService_OverallIsClamped(t *testing.T) {
	s, _, _ := newTestModeration(t)

	score := s.Toxicity(strings.Repeat("idiot stupid moron ", 10))
	assert.Equal(t, 1.0, score.Overall)
}

func TestModerationService_ToxicityMonotonicInBlockedWords(t *testing.T) {
	s, _, _ := newTestModeration(t)

	texts := []string{"nice", "THIS IS GREAT CONTENT", "check https://x.example"}
	for _, text := range texts {
		prev := s.Toxicity(text).Overall
		for i := 0; i < 15; i++ {
			text += " idiot"
			cur := s.Toxicity(text).Overall
			assert.GreaterOrEqual(t, cur, prev, text)
			prev = cur
		}
	}
}

func TestModerationService_BlocksHighToxicity(t *testing.T) {
	ctx := context.Background()
	s, notifier, _ := newTestModeration(t)

	text := strings.TrimSpace(strings.Repeat("idiot ", 10))
	require.InDelta(t, 0.8, s.Toxicity(text).Overall, 1e-9)

	result := s.Moderate(ctx, ModerateRequest{ContentID: "v1", AuthorID: "troll", Text: text})
	assert.False(t, result.Allowed)
	require.NotNil(t, result.Action)
	assert.Equal(t, domain.ActionDeleted, result.Action.Action)
	assert.Equal(t, domain.StatusPending, result.Action.Status)
	assert.Equal(t, "comment", result.Action.ContentType)
	assert.Equal(t, 1, s.Strikes("troll"))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, result.Action.ID, pending[0].ID)

	events := notifier.OfType(domain.EventModerationAction)
	require.Len(t, events, 1)
	assert.Equal(t, "troll", events[0].Recipient)
}

func TestModerationService_FlagsMidToxicity(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestModeration(t)

	text := "idiot idiot idiot idiot idiot idiot idiot"
	require.InDelta(t, 0.56, s.Toxicity(text).Overall, 1e-9)

	result := s.Moderate(ctx, ModerateRequest{ContentID: "v1", AuthorID: "a", Text: text})
	assert.True(t, result.Allowed)
	require.NotNil(t, result.Action)
	assert.Equal(t, domain.ActionFlagged, result.Action.Action)
	assert.Equal(t, 0, s.Strikes("a"))
}

func TestModerationService_RulesFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestModeration(t)

	_, err := s.AddRule(ctx, domain.ModerationRule{
		ID: "no-crypto", Name: "Crypto", Type: domain.RuleKeyword,
		Keywords: []string{"bitcoin"}, Action: domain.RuleDelete, Enabled: true,
	})
	require.NoError(t, err)
	_, err = s.AddRule(ctx, domain.ModerationRule{
		ID: "phone", Name: "Phone numbers", Type: domain.RuleRegex,
		Pattern: `\d{3}-\d{4}`, Action: domain.RuleFlag, Enabled: true,
	})
	require.NoError(t, err)

	blocked := s.Moderate(ctx, ModerateRequest{ContentID: "v1", AuthorID: "a", Text: "free Bitcoin, call 555-1234"})
	assert.False(t, blocked.Allowed)
	assert.Equal(t, domain.ActionDeleted, blocked.Action.Action)
	assert.Equal(t, 1, s.Strikes("a"))

	flagged := s.Moderate(ctx, ModerateRequest{ContentID: "v1", Text: "call 555-1234"})
	assert.True(t, flagged.Allowed)
	assert.Equal(t, domain.ActionFlagged, flagged.Action.Action)

	clean := s.Moderate(ctx, ModerateRequest{ContentID: "v1", Text: "great video"})
	assert.True(t, clean.Allowed)
	assert.Nil(t, clean.Action)

	assert.Len(t, s.ActionsFor("v1"), 2)
}

func TestModerationService_DefaultRules(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestModeration(t)

	spam := s.Moderate(ctx, ModerateRequest{ContentID: "v1", Text: "check out my channel please"})
	assert.True(t, spam.Allowed)
	require.NotNil(t, spam.Action)
	assert.Equal(t, domain.ActionHidden, spam.Action.Action)

	mild := s.Moderate(ctx, ModerateRequest{ContentID: "v1", Text: "idiot idiot idiot idiot"})
	assert.True(t, mild.Allowed)
	require.NotNil(t, mild.Action)
	assert.Equal(t, domain.ActionWarned, mild.Action.Action)
}

func TestModerationService_AddRuleValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestModeration(t)

	bad := []domain.ModerationRule{
		{Name: "", Type: domain.RuleSpam, Action: domain.RuleFlag},
		{Name: "x", Type: domain.RuleRegex, Pattern: "(", Action: domain.RuleFlag},
		{Name: "x", Type: domain.RuleKeyword, Action: domain.RuleFlag},
		{Name: "x", Type: domain.RuleToxicity, Threshold: 1.5, Action: domain.RuleFlag},
		{Name: "x", Type: "mystery", Action: domain.RuleFlag},
		{Name: "x", Type: domain.RuleSpam, Action: "explode"},
		{ID: "spam", Name: "dup", Type: domain.RuleSpam, Action: domain.RuleFlag},
	}
	for _, rule := range bad {
		_, err := s.AddRule(ctx, rule)
		assert.ErrorIs(t, err, domain.ErrInvalidRule, rule.Name)
	}

	added, err := s.AddRule(ctx, domain.ModerationRule{Name: "ok", Type: domain.RuleSpam, Action: domain.RuleFlag})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Len(t, s.Rules(), 3)

	assert.True(t, s.RemoveRule(ctx, added.ID))
	assert.False(t, s.RemoveRule(ctx, added.ID))
	assert.Len(t, s.Rules(), 2)
}

func TestModerationService_IsSpam(t *testing.T) {
	s, _, _ := newTestModeration(t)

	assert.True(t, s.IsSpam(strings.Repeat("buy ", 12)))
	assert.True(t, s.IsSpam("visit https://example.com"))
	assert.False(t, s.IsSpam("buy buy buy"))
	assert.False(t, s.IsSpam("one two three four five six seven eight nine ten eleven twelve"))
}

func TestModerationService_ReviewHappensOnce(t *testing.T) {
	ctx := context.Background()
	s, notifier, store := newTestModeration(t)

	action := s.Report(ctx, "v1", "video", "u9", "misleading")
	assert.Equal(t, domain.ActionFlagged, action.Action)
	assert.Equal(t, domain.StatusPending, action.Status)

	_, err := s.Review(ctx, action.ID, domain.StatusPending, "mod")
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	_, err = s.Review(ctx, "missing", domain.StatusApproved, "mod")
	assert.ErrorIs(t, err, domain.ErrActionNotFound)

	reviewed, err := s.Review(ctx, action.ID, domain.StatusApproved, "mod")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, "mod", *reviewed.ReviewedBy)

	_, err = s.Review(ctx, action.ID, domain.StatusRejected, "mod2")
	assert.ErrorIs(t, err, domain.ErrActionNotPending)
	assert.Empty(t, s.Pending())
	assert.Len(t, notifier.OfType(domain.EventModerationReview), 1)

	restored := NewModerationService(ctx, testOptions(store, newTestClock()), ModerationConfig{}, nil)
	actions := restored.ActionsFor("v1")
	require.Len(t, actions, 1)
	assert.Equal(t, domain.StatusApproved, actions[0].Status)
}

func TestModerationService_CustomBlockedWords(t *testing.T) {
	s := NewModerationService(context.Background(), EngineOptions{}, ModerationConfig{BlockedWords: []string{" Banana "}}, nil)

	assert.InDelta(t, 0.4, s.Toxicity("banana").Categories.Profanity, 1e-9)
	assert.Zero(t, s.Toxicity("idiot").Categories.Profanity)
}

func TestModerationService_CheckCopyright(t *testing.T) {
	s, _, _ := newTestModeration(t)

	flagged := s.CheckCopyright(domain.ContentMetadata{
		Title: "Band - Song (Official Music Video)",
		Tags:  []string{"VEVO"},
	})
	assert.True(t, flagged.Flagged)
	assert.ElementsMatch(t, []string{"official music video", "vevo"}, flagged.Matches)

	clean := s.CheckCopyright(domain.ContentMetadata{Title: "My holiday vlog"})
	assert.False(t, clean.Flagged)
	assert.Empty(t, clean.Matches)
}
