package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

const (
	analyticsEngine   = "analytics"
	maxRecentActivity = 100
	topVideosLimit    = 10
	growthWindowDays  = 30
)

type AnalyticsConfig struct {
	RetentionBuckets int
	// NominalVideoLength is used for retention bucketing when a view carries
	// no duration, or always when LegacyRetention is set.
	NominalVideoLength time.Duration
	LegacyRetention    bool
	DecayInterval      time.Duration
	MaxViewerDrop      int
	Milestones         []int64
	// Rand drives the viewer decay. Nil means a time-seeded source.
	Rand *rand.Rand
}

func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		RetentionBuckets:   100,
		NominalVideoLength: 600 * time.Second,
		DecayInterval:      30 * time.Second,
		MaxViewerDrop:      3,
		Milestones:         []int64{100, 1000, 10000, 100000, 1000000},
	}
}

type channelRecord struct {
	Subscribers int64              `json:"subscribers"`
	Revenue     map[string]float64 `json:"revenue"`
	DailyViews  map[string]int64   `json:"daily_views"`
}

type analyticsState struct {
	Videos   map[string]*domain.VideoAnalytics `json:"videos"`
	Channels map[string]*channelRecord         `json:"channels"`
}

// AnalyticsListener receives a copy of a video's analytics after each change.
type AnalyticsListener func(domain.VideoAnalytics)

// AnalyticsService aggregates per-video and per-channel analytics. Realtime
// metrics live only in memory; everything else is snapshotted.
type AnalyticsService struct {
	mu        sync.Mutex
	cfg       AnalyticsConfig
	state     analyticsState
	realtime  map[string]*domain.RealtimeMetrics
	listeners map[int]AnalyticsListener
	nextID    int
	rnd       *rand.Rand
	snapshot  *snapshotter
	notifier  Notifier
	log       *logger.Logger
	nowFn     func() time.Time
}

func NewAnalyticsService(ctx context.Context, opts EngineOptions, cfg AnalyticsConfig, notifier Notifier) *AnalyticsService {
	if cfg.RetentionBuckets <= 0 {
		cfg.RetentionBuckets = DefaultAnalyticsConfig().RetentionBuckets
	}
	if cfg.NominalVideoLength <= 0 {
		cfg.NominalVideoLength = DefaultAnalyticsConfig().NominalVideoLength
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = DefaultAnalyticsConfig().DecayInterval
	}
	if cfg.MaxViewerDrop < 0 {
		cfg.MaxViewerDrop = 0
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &AnalyticsService{
		cfg: cfg,
		state: analyticsState{
			Videos:   make(map[string]*domain.VideoAnalytics),
			Channels: make(map[string]*channelRecord),
		},
		realtime:  make(map[string]*domain.RealtimeMetrics),
		listeners: make(map[int]AnalyticsListener),
		rnd:       rnd,
		snapshot:  newSnapshotter(opts, analyticsEngine),
		notifier:  notifierOrNop(notifier),
		log:       opts.logger(analyticsEngine),
		nowFn:     opts.clock(),
	}

	var loaded analyticsState
	if s.snapshot.load(ctx, &loaded) {
		if loaded.Videos != nil {
			s.state.Videos = loaded.Videos
		}
		if loaded.Channels != nil {
			s.state.Channels = loaded.Channels
		}
	}
	return s
}

// TrackView records one finished playback.
func (s *AnalyticsService) TrackView(ctx context.Context, ev domain.ViewEvent) {
	metrics.EngineOperations.WithLabelValues(analyticsEngine, "track_view").Inc()

	now := s.nowFn()
	watch := math.Max(ev.WatchSeconds, 0)

	s.mu.Lock()
	va := s.video(ev.ContentID)
	if ev.ChannelID != "" {
		va.ChannelID = ev.ChannelID
	}
	va.Views++
	va.WatchTimeSeconds += watch
	va.AverageViewDuration = va.WatchTimeSeconds / float64(va.Views)
	va.LastViewed = now

	if ev.UserID != "" && !va.Viewers[ev.UserID] {
		va.Viewers[ev.UserID] = true
		va.UniqueViews++
	}
	va.RetentionHistogram[s.bucketIndex(watch, ev.DurationSeconds)]++

	source := ev.Source
	if source == "" {
		source = domain.SourceDirect
	}
	va.TrafficSources[source]++
	if ev.Country != "" {
		va.Demographics.Countries[ev.Country]++
	}
	if ev.Device != "" {
		va.Demographics.Devices[ev.Device]++
	}

	if va.ChannelID != "" {
		s.channel(va.ChannelID).DailyViews[now.UTC().Format("2006-01-02")]++
	}

	rt := s.realtimeFor(ev.ContentID)
	rt.CurrentViewers++
	rt.Views24h++
	rt.Views7d++
	rt.Views30d++
	s.pushActivity(rt, domain.ActivityEvent{Type: "view", ContentID: ev.ContentID, UserID: ev.UserID, Timestamp: now})
	metrics.CurrentViewers.Set(float64(s.totalViewers()))

	milestone := s.isMilestone(va.Views)
	views, channelID := va.Views, va.ChannelID
	out := cloneVideo(va)
	listeners := s.listenerSnapshot()
	s.snapshot.save(ctx, s.state)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(*out)
	}

	if milestone {
		event := domain.Event{
			Type:       domain.EventViewMilestone,
			EntityID:   ev.ContentID,
			Recipient:  channelID,
			Message:    fmt.Sprintf("Your video reached %d views", views),
			Attributes: map[string]string{"views": strconv.FormatInt(views, 10)},
			OccurredAt: now,
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.log.Error(ctx, "Failed to notify view milestone", err, map[string]interface{}{
				"content_id": ev.ContentID,
				"views":      views,
			})
		}
	}
}

// bucketIndex maps a watch duration onto the retention histogram.
func (s *AnalyticsService) bucketIndex(watch, duration float64) int {
	length := s.cfg.NominalVideoLength.Seconds()
	if duration > 0 && !s.cfg.LegacyRetention {
		length = duration
	}
	idx := int(math.Floor(watch / length * float64(s.cfg.RetentionBuckets)))
	if idx < 0 {
		return 0
	}
	if idx >= s.cfg.RetentionBuckets {
		return s.cfg.RetentionBuckets - 1
	}
	return idx
}

func (s *AnalyticsService) isMilestone(views int64) bool {
	for _, m := range s.cfg.Milestones {
		if m == views {
			return true
		}
	}
	return false
}

// TrackEngagement increments one engagement counter.
func (s *AnalyticsService) TrackEngagement(ctx context.Context, contentID string, kind domain.EngagementKind) {
	s.AdjustEngagement(ctx, contentID, kind, 1)
}

// AdjustEngagement applies a signed delta to one engagement counter, floored
// at zero. Negative deltas undo earlier engagement.
func (s *AnalyticsService) AdjustEngagement(ctx context.Context, contentID string, kind domain.EngagementKind, delta int64) {
	if delta == 0 {
		return
	}
	metrics.EngineOperations.WithLabelValues(analyticsEngine, "engagement_"+string(kind)).Inc()

	s.mu.Lock()
	va := s.video(contentID)
	var counter *int64
	switch kind {
	case domain.EngagementLike:
		counter = &va.Likes
	case domain.EngagementDislike:
		counter = &va.Dislikes
	case domain.EngagementComment:
		counter = &va.Comments
	case domain.EngagementShare:
		counter = &va.Shares
	default:
		s.mu.Unlock()
		return
	}
	*counter += delta
	if *counter < 0 {
		*counter = 0
	}

	if delta > 0 {
		s.pushActivity(s.realtimeFor(contentID), domain.ActivityEvent{
			Type:      string(kind),
			ContentID: contentID,
			Timestamp: s.nowFn(),
		})
	}

	out := cloneVideo(va)
	listeners := s.listenerSnapshot()
	s.snapshot.save(ctx, s.state)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(*out)
	}
}

// Video returns a copy of the analytics for contentID, or nil if none exist.
func (s *AnalyticsService) Video(contentID string) *domain.VideoAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.state.Videos[contentID]
	if !ok {
		return nil
	}
	return cloneVideo(va)
}

// EngagementRate is (likes + comments + shares) per hundred views.
func (s *AnalyticsService) EngagementRate(contentID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.state.Videos[contentID]
	if !ok {
		return 0
	}
	return engagementRate(va.Likes+va.Comments+va.Shares, va.Views)
}

func engagementRate(engagements, views int64) float64 {
	if views < 1 {
		views = 1
	}
	return float64(engagements) / float64(views) * 100
}

// RetentionCurve expresses each histogram bucket as a percentage of all
// bucketed views. Empty when nothing has been bucketed.
func (s *AnalyticsService) RetentionCurve(contentID string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.state.Videos[contentID]
	if !ok {
		return []float64{}
	}

	var total int64
	for _, n := range va.RetentionHistogram {
		total += n
	}
	if total == 0 {
		return []float64{}
	}

	curve := make([]float64, len(va.RetentionHistogram))
	for i, n := range va.RetentionHistogram {
		curve[i] = float64(n) / float64(total) * 100
	}
	return curve
}

// Realtime returns a copy of the ephemeral metrics for contentID, or nil.
func (s *AnalyticsService) Realtime(contentID string) *domain.RealtimeMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.realtime[contentID]
	if !ok {
		return nil
	}
	out := *rt
	out.RecentActivity = append([]domain.ActivityEvent(nil), rt.RecentActivity...)
	return &out
}

// ExportAnalytics serializes one item's analytics. CSV carries a fixed six
// row summary; JSON carries the full record minus viewer identities.
func (s *AnalyticsService) ExportAnalytics(contentID string, format domain.ExportFormat) (string, error) {
	va := s.Video(contentID)
	if va == nil {
		return "", domain.ErrContentNotFound
	}

	switch format {
	case domain.ExportJSON:
		va.Viewers = nil
		data, err := json.MarshalIndent(va, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode analytics: %w", err)
		}
		return string(data), nil

	case domain.ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		rows := [][]string{
			{"Metric", "Value"},
			{"Views", strconv.FormatInt(va.Views, 10)},
			{"Watch Time (seconds)", strconv.FormatFloat(va.WatchTimeSeconds, 'f', 2, 64)},
			{"Average View Duration (seconds)", strconv.FormatFloat(va.AverageViewDuration, 'f', 2, 64)},
			{"Likes", strconv.FormatInt(va.Likes, 10)},
			{"Comments", strconv.FormatInt(va.Comments, 10)},
			{"Shares", strconv.FormatInt(va.Shares, 10)},
		}
		if err := w.WriteAll(rows); err != nil {
			return "", fmt.Errorf("failed to write csv: %w", err)
		}
		return buf.String(), nil
	}

	return "", fmt.Errorf("%w: %s", domain.ErrInvalidExport, format)
}

// ChannelAnalytics aggregates every tracked video of channelID.
func (s *AnalyticsService) ChannelAnalytics(channelID string) *domain.ChannelAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channel(channelID)
	out := &domain.ChannelAnalytics{
		ChannelID:       channelID,
		Subscribers:     ch.Subscribers,
		RevenueBySource: make(map[string]float64, len(ch.Revenue)),
		TopVideos:       []string{},
		ViewGrowth:      []domain.DataPoint{},
	}
	for source, amount := range ch.Revenue {
		out.RevenueBySource[source] = amount
	}

	var videos []*domain.VideoAnalytics
	var engagements int64
	for _, va := range s.state.Videos {
		if va.ChannelID != channelID {
			continue
		}
		videos = append(videos, va)
		out.TotalViews += va.Views
		out.TotalWatchTimeSeconds += va.WatchTimeSeconds
		engagements += va.Likes + va.Comments + va.Shares
	}
	out.TotalVideos = len(videos)
	out.EngagementRate = engagementRate(engagements, out.TotalViews)

	sort.Slice(videos, func(i, j int) bool {
		if videos[i].Views != videos[j].Views {
			return videos[i].Views > videos[j].Views
		}
		return videos[i].ContentID < videos[j].ContentID
	})
	for i, va := range videos {
		if i == topVideosLimit {
			break
		}
		out.TopVideos = append(out.TopVideos, va.ContentID)
	}

	cutoff := s.nowFn().UTC().AddDate(0, 0, -growthWindowDays)
	for day, views := range ch.DailyViews {
		ts, err := time.Parse("2006-01-02", day)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		out.ViewGrowth = append(out.ViewGrowth, domain.DataPoint{Timestamp: ts, Value: float64(views)})
	}
	sort.Slice(out.ViewGrowth, func(i, j int) bool {
		return out.ViewGrowth[i].Timestamp.Before(out.ViewGrowth[j].Timestamp)
	})

	return out
}

// RecordRevenue credits net revenue to a channel's breakdown.
func (s *AnalyticsService) RecordRevenue(ctx context.Context, channelID string, source domain.RevenueSource, amount float64) {
	if channelID == "" || amount <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.channel(channelID).Revenue[string(source)] += amount
	s.snapshot.save(ctx, s.state)
}

// RecordSubscription moves a channel's subscriber count, floored at zero.
func (s *AnalyticsService) RecordSubscription(ctx context.Context, channelID string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channel(channelID)
	ch.Subscribers += delta
	if ch.Subscribers < 0 {
		ch.Subscribers = 0
	}
	s.snapshot.save(ctx, s.state)
}

// Subscribe registers a listener and returns the function that removes it.
func (s *AnalyticsService) Subscribe(fn AnalyticsListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// DecayViewers drops every item's current viewer count by a random amount
// in [0, MaxViewerDrop], never below zero.
func (s *AnalyticsService) DecayViewers(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rt := range s.realtime {
		drop := int64(s.rnd.Intn(s.cfg.MaxViewerDrop + 1))
		rt.CurrentViewers -= drop
		if rt.CurrentViewers < 0 {
			rt.CurrentViewers = 0
		}
	}
	total := s.totalViewers()
	metrics.CurrentViewers.Set(float64(total))

	s.log.Debug(ctx, "Decayed current viewers", map[string]interface{}{
		"items":   len(s.realtime),
		"viewers": total,
	})
}

// Serve runs the decay loop until ctx is cancelled.
func (s *AnalyticsService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.DecayViewers(ctx)
		}
	}
}

func (s *AnalyticsService) String() string { return "analytics-decay" }

// StartDecay runs the decay loop in the background. The returned function
// stops it and waits for it to exit.
func (s *AnalyticsService) StartDecay(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *AnalyticsService) video(contentID string) *domain.VideoAnalytics {
	va, ok := s.state.Videos[contentID]
	if !ok {
		va = &domain.VideoAnalytics{ContentID: contentID}
		s.state.Videos[contentID] = va
	}
	// Snapshots written by an older bucket count are re-sized in place.
	if len(va.RetentionHistogram) != s.cfg.RetentionBuckets {
		resized := make([]int64, s.cfg.RetentionBuckets)
		copy(resized, va.RetentionHistogram)
		va.RetentionHistogram = resized
	}
	if va.TrafficSources == nil {
		va.TrafficSources = make(map[domain.TrafficSource]int64)
	}
	if va.Demographics.Countries == nil {
		va.Demographics.Countries = make(map[string]int64)
	}
	if va.Demographics.Devices == nil {
		va.Demographics.Devices = make(map[string]int64)
	}
	if va.Viewers == nil {
		va.Viewers = make(map[string]bool)
	}
	return va
}

func (s *AnalyticsService) channel(channelID string) *channelRecord {
	ch, ok := s.state.Channels[channelID]
	if !ok {
		ch = &channelRecord{}
		s.state.Channels[channelID] = ch
	}
	if ch.Revenue == nil {
		ch.Revenue = make(map[string]float64)
	}
	if ch.DailyViews == nil {
		ch.DailyViews = make(map[string]int64)
	}
	return ch
}

func (s *AnalyticsService) realtimeFor(contentID string) *domain.RealtimeMetrics {
	rt, ok := s.realtime[contentID]
	if !ok {
		rt = &domain.RealtimeMetrics{ContentID: contentID, RecentActivity: []domain.ActivityEvent{}}
		s.realtime[contentID] = rt
	}
	return rt
}

// pushActivity keeps the newest maxRecentActivity events, newest first.
func (s *AnalyticsService) pushActivity(rt *domain.RealtimeMetrics, ev domain.ActivityEvent) {
	rt.RecentActivity = append([]domain.ActivityEvent{ev}, rt.RecentActivity...)
	if len(rt.RecentActivity) > maxRecentActivity {
		rt.RecentActivity = rt.RecentActivity[:maxRecentActivity]
	}
}

func (s *AnalyticsService) totalViewers() int64 {
	var total int64
	for _, rt := range s.realtime {
		total += rt.CurrentViewers
	}
	return total
}

func (s *AnalyticsService) listenerSnapshot() []AnalyticsListener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]AnalyticsListener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func cloneVideo(va *domain.VideoAnalytics) *domain.VideoAnalytics {
	out := *va
	out.RetentionHistogram = append([]int64(nil), va.RetentionHistogram...)
	out.TrafficSources = make(map[domain.TrafficSource]int64, len(va.TrafficSources))
	for k, v := range va.TrafficSources {
		out.TrafficSources[k] = v
	}
	out.Demographics = domain.Demographics{
		Countries: copyCounts(va.Demographics.Countries),
		Devices:   copyCounts(va.Demographics.Devices),
	}
	out.Viewers = make(map[string]bool, len(va.Viewers))
	for k, v := range va.Viewers {
		out.Viewers[k] = v
	}
	return &out
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
