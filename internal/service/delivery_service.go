package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

const (
	deliveryEngine = "delivery"

	bandwidthHeadroom    = 0.8
	lowBufferThreshold   = 30
	highBufferThreshold  = 80
	stallDropRungs       = 2
	unknownBandwidthKbps = 5000
)

// QualityLadder is ordered from lowest to highest bitrate.
var QualityLadder = []domain.QualityLevel{
	{Name: "240p", Height: 240, BitrateKbps: 400},
	{Name: "360p", Height: 360, BitrateKbps: 800},
	{Name: "480p", Height: 480, BitrateKbps: 1400},
	{Name: "720p", Height: 720, BitrateKbps: 2800},
	{Name: "1080p", Height: 1080, BitrateKbps: 5000},
}

var connectionBandwidth = map[domain.ConnectionClass]int{
	domain.ConnectionSlow2G: 50,
	domain.Connection2G:     250,
	domain.Connection3G:     1500,
	domain.Connection4G:     10000,
	domain.ConnectionWiFi:   25000,
}

// EstimateBandwidth maps a connection class onto a fixed bitrate in kbps.
// It is a coarse class lookup, not a throughput measurement.
func EstimateBandwidth(class domain.ConnectionClass) int {
	if kbps, ok := connectionBandwidth[class]; ok {
		return kbps
	}
	return unknownBandwidthKbps
}

// BandwidthProbe produces a fresh estimate for a session from its last
// reported connection class.
type BandwidthProbe func(sessionID string, class domain.ConnectionClass) int

type DeliveryConfig struct {
	BufferTarget     time.Duration
	BandwidthRefresh time.Duration
	Probe            BandwidthProbe
}

func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		BufferTarget:     30 * time.Second,
		BandwidthRefresh: 10 * time.Second,
	}
}

type playbackSession struct {
	rung       int
	manual     bool
	connection domain.ConnectionClass
	bandwidth  int
	stats      domain.PlaybackStats
	hasStats   bool
}

// DeliveryService is the adaptive bitrate state machine, one per playback
// session. Only manual quality choices are persisted.
type DeliveryService struct {
	mu        sync.Mutex
	cfg       DeliveryConfig
	sessions  map[string]*playbackSession
	preferred map[string]string
	snapshot  *snapshotter
	log       *logger.Logger
}

func NewDeliveryService(ctx context.Context, opts EngineOptions, cfg DeliveryConfig) *DeliveryService {
	if cfg.BufferTarget <= 0 {
		cfg.BufferTarget = DefaultDeliveryConfig().BufferTarget
	}
	if cfg.BandwidthRefresh <= 0 {
		cfg.BandwidthRefresh = DefaultDeliveryConfig().BandwidthRefresh
	}
	if cfg.Probe == nil {
		cfg.Probe = func(_ string, class domain.ConnectionClass) int { return EstimateBandwidth(class) }
	}

	s := &DeliveryService{
		cfg:       cfg,
		sessions:  make(map[string]*playbackSession),
		preferred: make(map[string]string),
		snapshot:  newSnapshotter(opts, deliveryEngine),
		log:       opts.logger(deliveryEngine),
	}

	var loaded map[string]string
	if s.snapshot.load(ctx, &loaded) && loaded != nil {
		s.preferred = loaded
	}
	return s
}

func (s *DeliveryService) Ladder() []domain.QualityLevel {
	return append([]domain.QualityLevel(nil), QualityLadder...)
}

// session returns the state for id, creating it on first use.
func (s *DeliveryService) session(id string) *playbackSession {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := s.newSession(id)
	s.sessions[id] = sess
	return sess
}

// lookup is session for read paths: an unknown id gets the state it would
// start with, without being tracked.
func (s *DeliveryService) lookup(id string) *playbackSession {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	return s.newSession(id)
}

// newSession restores a persisted manual choice, otherwise picks the optimal
// rung for an unknown connection.
func (s *DeliveryService) newSession(id string) *playbackSession {
	sess := &playbackSession{bandwidth: unknownBandwidthKbps}
	if name, ok := s.preferred[id]; ok {
		if idx := rungIndex(name); idx >= 0 {
			sess.rung = idx
			sess.manual = true
		}
	}
	if !sess.manual {
		sess.rung = optimalRung(sess.bandwidth)
	}
	return sess
}

func rungIndex(name string) int {
	for i, q := range QualityLadder {
		if q.Name == name {
			return i
		}
	}
	return -1
}

// optimalRung is the highest rung whose bitrate fits in 80% of bandwidth,
// or the lowest rung when none does.
func optimalRung(bandwidthKbps int) int {
	budget := float64(bandwidthKbps) * bandwidthHeadroom
	best := 0
	for i, q := range QualityLadder {
		if float64(q.BitrateKbps) <= budget {
			best = i
		}
	}
	return best
}

// ReportConnection records a session's connection class and returns the
// resulting bandwidth estimate.
func (s *DeliveryService) ReportConnection(sessionID string, class domain.ConnectionClass) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	sess.connection = class
	sess.bandwidth = s.cfg.Probe(sessionID, class)
	return sess.bandwidth
}

// SetBandwidth overrides the estimate directly, for players that measure it.
func (s *DeliveryService) SetBandwidth(sessionID string, kbps int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kbps < 0 {
		kbps = 0
	}
	s.session(sessionID).bandwidth = kbps
}

func (s *DeliveryService) Bandwidth(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(sessionID).bandwidth
}

// CurrentQuality is the rung the session is playing.
func (s *DeliveryService) CurrentQuality(sessionID string) domain.QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return QualityLadder[s.lookup(sessionID).rung]
}

// SelectOptimalQuality moves the session to the best rung for its bandwidth
// unless the viewer picked a quality by hand.
func (s *DeliveryService) SelectOptimalQuality(ctx context.Context, sessionID string) domain.QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	if !sess.manual {
		s.switchTo(ctx, sessionID, sess, optimalRung(sess.bandwidth), "optimal")
	}
	return QualityLadder[sess.rung]
}

// AdaptBitrate reacts to buffer health: below 30% it steps down one rung,
// above 80% it reselects the optimal rung, in between it holds.
func (s *DeliveryService) AdaptBitrate(ctx context.Context, sessionID string, bufferHealth float64) domain.QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	s.adapt(ctx, sessionID, sess, bufferHealth)
	return QualityLadder[sess.rung]
}

func (s *DeliveryService) adapt(ctx context.Context, sessionID string, sess *playbackSession, bufferHealth float64) {
	if sess.manual {
		return
	}
	switch {
	case bufferHealth < lowBufferThreshold:
		if sess.rung > 0 {
			s.switchTo(ctx, sessionID, sess, sess.rung-1, "low_buffer")
		}
	case bufferHealth > highBufferThreshold:
		s.switchTo(ctx, sessionID, sess, optimalRung(sess.bandwidth), "optimal")
	}
}

// HandleStall drops two rungs at once, never below the lowest. A stall ends
// any manual override so the adapter can recover the session afterwards.
func (s *DeliveryService) HandleStall(ctx context.Context, sessionID string) domain.QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	target := sess.rung - stallDropRungs
	if target < 0 {
		target = 0
	}
	if sess.manual && target != sess.rung {
		sess.manual = false
		delete(s.preferred, sessionID)
		s.snapshot.save(ctx, s.preferred)
	}
	s.switchTo(ctx, sessionID, sess, target, "stall")
	return QualityLadder[sess.rung]
}

func (s *DeliveryService) switchTo(ctx context.Context, sessionID string, sess *playbackSession, rung int, reason string) {
	if rung == sess.rung {
		return
	}
	s.log.Debug(ctx, "Quality switch", map[string]interface{}{
		"session_id": sessionID,
		"from":       QualityLadder[sess.rung].Name,
		"to":         QualityLadder[rung].Name,
		"reason":     reason,
	})
	metrics.QualitySwitches.WithLabelValues(reason).Inc()
	sess.rung = rung
}

// BufferHealth is how much of the buffer target lies ahead of currentTime in
// the range that contains it, as a percentage capped at 100.
func (s *DeliveryService) BufferHealth(currentTime float64, ranges []domain.TimeRange) float64 {
	target := s.cfg.BufferTarget.Seconds()
	for _, r := range ranges {
		if currentTime >= r.Start && currentTime <= r.End {
			return math.Min((r.End-currentTime)/target, 1) * 100
		}
	}
	return 0
}

// SetManualQuality pins the session to a named rung until cleared.
func (s *DeliveryService) SetManualQuality(ctx context.Context, sessionID, name string) (domain.QualityLevel, error) {
	idx := rungIndex(name)
	if idx < 0 {
		return domain.QualityLevel{}, domain.ErrUnknownQuality
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	s.switchTo(ctx, sessionID, sess, idx, "manual")
	sess.manual = true
	s.preferred[sessionID] = name
	s.snapshot.save(ctx, s.preferred)
	return QualityLadder[idx], nil
}

// ClearManualQuality returns the session to automatic selection.
func (s *DeliveryService) ClearManualQuality(ctx context.Context, sessionID string) domain.QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	sess.manual = false
	if _, ok := s.preferred[sessionID]; ok {
		delete(s.preferred, sessionID)
		s.snapshot.save(ctx, s.preferred)
	}
	s.switchTo(ctx, sessionID, sess, optimalRung(sess.bandwidth), "optimal")
	return QualityLadder[sess.rung]
}

// UpdateStats records a player report, derives buffer health from it, lets
// the adapter react and returns the stats as the server now sees them.
func (s *DeliveryService) UpdateStats(ctx context.Context, sessionID string, stats domain.PlaybackStats) domain.PlaybackStats {
	health := s.BufferHealth(stats.CurrentTime, stats.BufferedRanges)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	if stats.BandwidthKbps > 0 {
		sess.bandwidth = stats.BandwidthKbps
	}
	s.adapt(ctx, sessionID, sess, health)

	stats.BufferHealthPct = health
	stats.BandwidthKbps = sess.bandwidth
	stats.Quality = QualityLadder[sess.rung]
	stats.BufferedRanges = append([]domain.TimeRange(nil), stats.BufferedRanges...)
	sess.stats = stats
	sess.hasStats = true
	return stats
}

func (s *DeliveryService) Stats(sessionID string) (domain.PlaybackStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || !sess.hasStats {
		return domain.PlaybackStats{}, false
	}
	stats := sess.stats
	stats.BufferedRanges = append([]domain.TimeRange(nil), sess.stats.BufferedRanges...)
	return stats, true
}

// EndSession forgets the session's runtime state. A manual preference stays.
func (s *DeliveryService) EndSession(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// RefreshBandwidth re-probes every session that reported a connection class.
func (s *DeliveryService) RefreshBandwidth(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refreshed := 0
	for id, sess := range s.sessions {
		if sess.connection == "" {
			continue
		}
		sess.bandwidth = s.cfg.Probe(id, sess.connection)
		refreshed++
	}
	s.log.Debug(ctx, "Refreshed bandwidth estimates", map[string]interface{}{"sessions": refreshed})
}

// BandwidthMonitor runs RefreshBandwidth on a timer.
type BandwidthMonitor struct {
	delivery *DeliveryService
	interval time.Duration
}

func NewBandwidthMonitor(delivery *DeliveryService) *BandwidthMonitor {
	return &BandwidthMonitor{delivery: delivery, interval: delivery.cfg.BandwidthRefresh}
}

func (m *BandwidthMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.delivery.RefreshBandwidth(ctx)
		}
	}
}

func (m *BandwidthMonitor) String() string { return "bandwidth-monitor" }
