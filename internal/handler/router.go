package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports the reachability of each backing dependency by name.
type HealthCheck func(ctx context.Context) map[string]bool

type Handlers struct {
	Social        *SocialHandler
	Comments      *CommentHandler
	Analytics     *AnalyticsHandler
	Discovery     *DiscoveryHandler
	Moderation    *ModerationHandler
	Monetization  *MonetizationHandler
	Streaming     *StreamingHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
}

func NewRouter(h Handlers, health HealthCheck, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		checks := map[string]bool{}
		if health != nil {
			checks = health(c.Request.Context())
		}

		status := "healthy"
		httpStatus := http.StatusOK
		for _, ok := range checks {
			if !ok {
				status = "unhealthy"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/content", h.Discovery.ListContent)
		api.GET("/content/:id", h.Discovery.GetContent)
		api.GET("/content/:id/related", h.Discovery.Related)
		api.GET("/recommendations", h.Discovery.Recommendations)
		api.GET("/trending", h.Discovery.Trending)
		api.GET("/search", h.Discovery.Search)
		api.GET("/search/suggestions", h.Discovery.Suggestions)

		api.POST("/content/:id/like", h.Social.Like)
		api.POST("/content/:id/dislike", h.Social.Dislike)
		api.POST("/content/:id/save", h.Social.Save)
		api.POST("/content/:id/share", h.Social.Share)
		api.GET("/content/:id/reactions", h.Social.Reactions)

		api.GET("/content/:id/comments", h.Comments.List)
		api.POST("/content/:id/comments", h.Comments.Post)
		api.GET("/content/:id/comments/:commentId", h.Comments.Get)
		api.PUT("/content/:id/comments/:commentId", h.Comments.Edit)
		api.DELETE("/content/:id/comments/:commentId", h.Comments.Delete)
		api.POST("/content/:id/comments/:commentId/like", h.Comments.Like)
		api.POST("/content/:id/comments/:commentId/pin", h.Comments.Pin)
		api.DELETE("/content/:id/comments/:commentId/pin", h.Comments.Unpin)
		api.POST("/content/:id/comments/:commentId/heart", h.Comments.Heart)

		api.POST("/content/:id/views", h.Analytics.RecordView)
		api.GET("/content/:id/analytics", h.Analytics.Video)
		api.GET("/content/:id/analytics/retention", h.Analytics.Retention)
		api.GET("/content/:id/analytics/realtime", h.Analytics.Realtime)
		api.GET("/content/:id/analytics/export", h.Analytics.Export)

		api.POST("/content/:id/report", h.Moderation.Report)
		api.POST("/moderation/check", h.Moderation.Moderate)
		api.POST("/moderation/toxicity", h.Moderation.Toxicity)
		api.POST("/moderation/copyright", h.Moderation.CheckCopyright)

		api.POST("/content/:id/ads", h.Monetization.GeneratePlacements)
		api.GET("/content/:id/ads", h.Monetization.Placements)
		api.POST("/ads/:id/impression", h.Monetization.Impression)
		api.POST("/ads/:id/click", h.Monetization.Click)
		api.GET("/revenue/:id", h.Monetization.Revenue)
		api.GET("/monetization/settings", h.Monetization.Settings)
		api.PUT("/monetization/settings", h.Monetization.UpdateSettings)
		api.GET("/monetization/estimate", h.Monetization.Estimate)

		api.POST("/channels/:id/subscribe", h.Social.Subscribe)
		api.POST("/channels/:id/unsubscribe", h.Social.Unsubscribe)
		api.GET("/channels/:id/subscribers", h.Social.Subscribers)
		api.GET("/channels/:id/analytics", h.Analytics.Channel)
		api.GET("/channels/:id/eligibility", h.Monetization.Eligibility)
		api.POST("/channels/:id/superchat", h.Monetization.SuperChat)
		api.POST("/channels/:id/memberships", h.Monetization.Membership)
		api.POST("/channels/:id/merchandise", h.Monetization.Merchandise)
		api.POST("/channels/:id/sponsorships", h.Monetization.Sponsorship)

		api.GET("/users/:id/saved", h.Social.SavedItems)
		api.GET("/users/:id/subscriptions", h.Social.Subscriptions)
		api.GET("/users/:id/search-history", h.Discovery.SearchHistory)
		api.DELETE("/users/:id/search-history", h.Discovery.ClearSearchHistory)
		api.GET("/users/:id/watch-history", h.Discovery.WatchHistory)
		api.DELETE("/users/:id/watch-history", h.Discovery.ClearWatchHistory)
		api.GET("/users/:id/notifications", h.Notifications.List)
		api.DELETE("/users/:id/notifications", h.Notifications.Clear)

		api.GET("/streaming/ladder", h.Streaming.Ladder)
		api.POST("/sessions/:id/connection", h.Streaming.ReportConnection)
		api.GET("/sessions/:id/quality", h.Streaming.Quality)
		api.POST("/sessions/:id/quality/adapt", h.Streaming.Adapt)
		api.PUT("/sessions/:id/quality/manual", h.Streaming.SetManualQuality)
		api.DELETE("/sessions/:id/quality/manual", h.Streaming.ClearManualQuality)
		api.POST("/sessions/:id/stall", h.Streaming.Stall)
		api.PUT("/sessions/:id/stats", h.Streaming.UpdateStats)
		api.GET("/sessions/:id/stats", h.Streaming.Stats)
		api.DELETE("/sessions/:id", h.Streaming.EndSession)
	}

	admin := router.Group("/api/admin")
	{
		admin.GET("/moderation/pending", h.Admin.PendingActions)
		admin.GET("/moderation/content/:id", h.Admin.ContentActions)
		admin.POST("/moderation/actions/:id/review", h.Admin.ReviewAction)
		admin.GET("/moderation/rules", h.Admin.ListRules)
		admin.POST("/moderation/rules", h.Admin.AddRule)
		admin.DELETE("/moderation/rules/:id", h.Admin.RemoveRule)
		admin.GET("/moderation/strikes/:id", h.Admin.Strikes)
		admin.GET("/queue/stats", h.Admin.GetQueueStats)
		admin.GET("/workers", h.Admin.ListActiveWorkers)
		admin.GET("/system", h.Admin.SystemMetrics)
	}

	return router
}
