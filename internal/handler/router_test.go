package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var published = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router     *gin.Engine
	social     *service.SocialService
	comments   *service.CommentService
	analytics  *service.AnalyticsService
	moderation *service.ModerationService
	inbox      *service.InboxService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()
	store := memory.NewStore()
	opts := service.EngineOptions{Store: store, KeyPrefix: "test", Logger: log}

	catalog := memory.NewCatalog(
		domain.ContentItem{ID: "v1", Title: "Go basics", Description: "learn go", ChannelID: "c1", CategoryID: "edu", Tags: []string{"go"}, PublishedAt: published, ViewCount: 100, DurationSeconds: 100},
		domain.ContentItem{ID: "v2", Title: "Go advanced", ChannelID: "c1", CategoryID: "edu", Tags: []string{"go"}, PublishedAt: published.Add(time.Hour), ViewCount: 50},
		domain.ContentItem{ID: "v3", Title: "Cooking pasta", ChannelID: "c2", CategoryID: "food", PublishedAt: published, ViewCount: 10},
	)

	social := service.NewSocialService(ctx, opts)
	comments := service.NewCommentService(ctx, opts, nil)
	analytics := service.NewAnalyticsService(ctx, opts, service.DefaultAnalyticsConfig(), nil)
	moderation := service.NewModerationService(ctx, opts, service.ModerationConfig{}, nil)
	recommendations := service.NewRecommendationService(ctx, opts)
	search := service.NewSearchService(ctx, opts)
	monetization := service.NewMonetizationService(ctx, opts, service.DefaultMonetizationSettings(), nil)
	delivery := service.NewDeliveryService(ctx, opts, service.DefaultDeliveryConfig())
	inbox := service.NewInboxService(store, "test")
	monitoring := service.NewMonitoringService(store, "memory", "test", nil, nil, nil)

	engagement := service.NewEngagementService(social, comments, analytics, moderation, recommendations, monetization, catalog, log)
	discovery := service.NewDiscoveryService(catalog, recommendations, search, social)

	router := NewRouter(Handlers{
		Social:        NewSocialHandler(engagement, social, log),
		Comments:      NewCommentHandler(engagement, comments, log),
		Analytics:     NewAnalyticsHandler(engagement, analytics, log),
		Discovery:     NewDiscoveryHandler(catalog, discovery, recommendations, search, log),
		Moderation:    NewModerationHandler(moderation, log),
		Monetization:  NewMonetizationHandler(engagement, monetization, analytics, log),
		Streaming:     NewStreamingHandler(delivery, log),
		Notifications: NewNotificationHandler(inbox, log),
		Admin:         NewAdminHandler(moderation, monitoring, nil, log),
	}, monitoring.CheckHealth, log)

	return &testServer{
		router:     router,
		social:     social,
		comments:   comments,
		analytics:  analytics,
		moderation: moderation,
		inbox:      inbox,
	}
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestSocialHandler_LikeFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/like", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, float64(1), env.Data["likes"])

	w = s.do(t, http.MethodPost, "/api/content/v1/dislike", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, float64(0), env.Data["likes"])
	assert.Equal(t, float64(1), env.Data["dislikes"])

	w = s.do(t, http.MethodGet, "/api/content/v1/reactions?user_id=u1", nil)
	env = decode(t, w)
	assert.Equal(t, false, env.Data["liked"])
	assert.Equal(t, true, env.Data["disliked"])

	assert.Equal(t, int64(1), s.analytics.Video("v1").Dislikes)
}

func TestSocialHandler_RejectsMissingUser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/like", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestSocialHandler_Subscriptions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/channels/c1/subscribe", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Data["changed"])
	assert.Equal(t, float64(1), env.Data["subscribers"])

	w = s.do(t, http.MethodPost, "/api/channels/c1/subscribe", map[string]string{"user_id": "u1"})
	assert.Equal(t, false, decode(t, w).Data["changed"])

	w = s.do(t, http.MethodPost, "/api/channels/c1/unsubscribe", map[string]string{"user_id": "u1"})
	env = decode(t, w)
	assert.Equal(t, true, env.Data["changed"])
	assert.Equal(t, float64(0), env.Data["subscribers"])
}

func TestCommentHandler_PostAndList(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/comments", map[string]string{
		"author_id":   "alice",
		"author_name": "Alice",
		"text":        "great video",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	comment := env.Data["comment"].(map[string]interface{})
	commentID := comment["id"].(string)

	w = s.do(t, http.MethodPost, "/api/content/v1/comments", map[string]string{
		"author_id":   "bob",
		"author_name": "Bob",
		"text":        "agreed",
		"parent_id":   commentID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/content/v1/comments?sort=newest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w).Data["count"])
	assert.Equal(t, int64(2), s.analytics.Video("v1").Comments)

	w = s.do(t, http.MethodPost, "/api/content/v1/comments/"+commentID+"/pin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.comments.Get("v1", commentID).Pinned)

	w = s.do(t, http.MethodDelete, "/api/content/v1/comments/"+commentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w).Data["removed"])
	assert.Zero(t, s.analytics.Video("v1").Comments)
}

func TestCommentHandler_Rejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/comments", map[string]string{
		"author_id":   "troll",
		"author_name": "Troll",
		"text":        strings.TrimSpace(strings.Repeat("idiot ", 10)),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "REJECTED_BY_MODERATION", decode(t, w).Error.Code)
	assert.Zero(t, s.comments.Count("v1"))
	assert.Equal(t, 1, s.moderation.Strikes("troll"))

	w = s.do(t, http.MethodPost, "/api/content/v1/comments", map[string]string{
		"author_id":   "alice",
		"author_name": "Alice",
		"text":        "reply",
		"parent_id":   "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/content/v1/comments", map[string]string{
		"author_id":   "alice",
		"author_name": "Alice",
		"text":        "   ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/content/v1/comments?sort=oldest", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentHandler_EditByOtherAuthorIsNotFound(t *testing.T) {
	s := newTestServer(t)

	c := s.comments.Post(context.Background(), "v1", domain.Author{ID: "alice", Name: "Alice"}, "first", "")
	require.NotNil(t, c)

	w := s.do(t, http.MethodPut, "/api/content/v1/comments/"+c.ID, map[string]string{"author_id": "bob", "text": "hijack"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/content/v1/comments/"+c.ID, map[string]string{"author_id": "alice", "text": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w).Data["edited"])
}

func TestAnalyticsHandler_ViewsAndExport(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/views", map[string]interface{}{
		"user_id":       "u1",
		"watch_seconds": 50,
		"country":       "NL",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Data["views"])

	w = s.do(t, http.MethodGet, "/api/content/v1/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	va := decode(t, w).Data["analytics"].(map[string]interface{})
	assert.Equal(t, "c1", va["channel_id"])
	assert.NotContains(t, va, "viewers")

	w = s.do(t, http.MethodGet, "/api/content/v1/analytics/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Metric,Value\n"))

	w = s.do(t, http.MethodGet, "/api/content/v1/analytics/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/content/nope/analytics/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/content/nope/analytics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/u1/watch-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data["items"], 1)
}

func TestDiscoveryHandler_Search(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/search?q=go&user_id=u1&sort=date", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w).Data["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "v2", items[0].(map[string]interface{})["id"])

	w = s.do(t, http.MethodGet, "/api/users/u1/search-history", nil)
	assert.Equal(t, []interface{}{"go"}, decode(t, w).Data["queries"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/search", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/search?q=go&sort=loudest", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/search?q=go&duration=epic", nil).Code)

	w = s.do(t, http.MethodDelete, "/api/users/u1/search-history", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDiscoveryHandler_CatalogPaging(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/content?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_next":true`)

	w = s.do(t, http.MethodGet, "/api/content?limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_next":false`)
	assert.Contains(t, w.Body.String(), `"has_previous":true`)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/content?limit=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/content/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/content/nope/related", nil).Code)

	w = s.do(t, http.MethodGet, "/api/content/v1/related", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w).Data["items"].([]interface{})
	require.NotEmpty(t, items)
	assert.Equal(t, "v2", items[0].(map[string]interface{})["id"])
}

func TestDiscoveryHandler_CatalogPageOutOfRange(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/content?page=100000000000000001&limit=100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/content?page=99999999999999999999", nil).Code)

	w = s.do(t, http.MethodGet, "/api/content?page=1000&limit=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_next":false`)
}

func TestAdminHandler_ReportAndReview(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v3/report", map[string]string{
		"reporter_id": "u9",
		"reason":      "misleading",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	actionID := decode(t, w).Data["id"].(string)

	w = s.do(t, http.MethodGet, "/api/admin/moderation/pending", nil)
	assert.Equal(t, float64(1), decode(t, w).Data["count"])

	review := map[string]string{"decision": "approved", "reviewer_id": "mod1"}
	w = s.do(t, http.MethodPost, "/api/admin/moderation/actions/"+actionID+"/review", review)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w).Data["status"])

	w = s.do(t, http.MethodPost, "/api/admin/moderation/actions/"+actionID+"/review", review)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/moderation/actions/not-a-uuid/review", review)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/moderation/actions/6ba7b810-9dad-11d1-80b4-00c04fd430c8/review", review)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/moderation/actions/"+actionID+"/review", map[string]string{"decision": "pending", "reviewer_id": "mod1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_Rules(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/admin/moderation/rules", map[string]interface{}{
		"name":     "no crypto",
		"type":     "keyword",
		"keywords": []string{"bitcoin"},
		"action":   "delete",
		"enabled":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	ruleID := decode(t, w).Data["id"].(string)

	w = s.do(t, http.MethodPost, "/api/admin/moderation/rules", map[string]interface{}{
		"name": "broken", "type": "regex", "pattern": "(", "action": "flag",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/admin/moderation/rules/"+ruleID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/admin/moderation/rules/"+ruleID, nil).Code)
}

func TestAdminHandler_QueueWithoutInspector(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/api/admin/queue/stats", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/api/admin/workers", nil).Code)
}

func TestAdminHandler_SystemMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/admin/system", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)

	runtimeMetrics, ok := env.Data["runtime"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "memory", runtimeMetrics["store_backend"])
	assert.Equal(t, map[string]interface{}{"store": true}, env.Data["health"])
	assert.Equal(t, "task queue not configured", env.Data["queue_error"])
	assert.NotContains(t, env.Data, "database")
}

func TestMonetizationHandler_Transactions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/channels/c1/superchat", map[string]interface{}{
		"user_id": "fan",
		"amount":  10,
		"message": "love it",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 7.0, decode(t, w).Data["net"])

	w = s.do(t, http.MethodPost, "/api/channels/c1/memberships", map[string]string{"user_id": "fan", "tier": "platinum"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "DECLINED", decode(t, w).Error.Code)

	w = s.do(t, http.MethodPost, "/api/channels/c1/superchat", map[string]interface{}{"user_id": "fan", "amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/revenue/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.0, decode(t, w).Data["total"])

	ch := s.analytics.ChannelAnalytics("c1")
	assert.InDelta(t, 7.0, ch.RevenueBySource[string(domain.RevenueSuperChat)], 1e-9)
}

func TestMonetizationHandler_SettingsAndAds(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/content/v1/ads", map[string]int{"duration_seconds": 900})
	require.Equal(t, http.StatusOK, w.Code)
	placements := decode(t, w).Data["placements"].([]interface{})
	require.NotEmpty(t, placements)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/api/ads/v1-preroll/impression", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/ads/nope/click", nil).Code)

	settings := service.DefaultMonetizationSettings()
	settings.MidRollIntervalSeconds = 0
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/monetization/settings", settings).Code)

	settings.MidRollIntervalSeconds = 120
	settings.SuperChatEnabled = false
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/monetization/settings", settings).Code)

	w = s.do(t, http.MethodPost, "/api/channels/c1/superchat", map[string]interface{}{"user_id": "fan", "amount": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/api/monetization/estimate?views=1000&rate=0.02", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(800), decode(t, w).Data["impressions"])
}

func TestStreamingHandler_Session(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/sessions/s1/connection", map[string]string{"connection": "3g"})
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, float64(1500), env.Data["bandwidth_kbps"])
	assert.Equal(t, "360p", env.Data["quality"].(map[string]interface{})["name"])

	w = s.do(t, http.MethodPut, "/api/sessions/s1/quality/manual", map[string]string{"quality": "4k"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/sessions/s1/quality/manual", map[string]string{"quality": "1080p"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/sessions/s1/quality", nil)
	assert.Equal(t, "1080p", decode(t, w).Data["quality"].(map[string]interface{})["name"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/sessions/s1/stats", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/sessions/s1", nil).Code)
}

func TestNotificationHandler_Inbox(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.inbox.Deliver(ctx, domain.Event{Type: domain.EventCommentReply, Recipient: "alice", EntityID: "v1"}))

	w := s.do(t, http.MethodGet, "/api/users/alice/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Data["count"])

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/users/alice/notifications", nil).Code)
	w = s.do(t, http.MethodGet, "/api/users/alice/notifications", nil)
	assert.Equal(t, float64(0), decode(t, w).Data["count"])
}
