package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

const (
	monetizationEngine = "monetization"

	adCPM = 2.50
	adCPC = 0.30

	preRollSeconds  = 15
	midRollSeconds  = 20
	postRollSeconds = 10

	midRollMinDuration = 480
	midRollEndBuffer   = 60

	superChatCut   = 0.30
	membershipCut  = 0.30
	merchandiseCut = 0.10

	minSubscribers    = 1000
	minWatchTimeHours = 4000
	minVideos         = 3
)

var membershipPrices = map[domain.MembershipTier]float64{
	domain.TierBasic:   4.99,
	domain.TierPremium: 9.99,
	domain.TierVIP:     24.99,
}

func DefaultMonetizationSettings() domain.MonetizationSettings {
	return domain.MonetizationSettings{
		PreRollEnabled:         true,
		MidRollEnabled:         true,
		PostRollEnabled:        true,
		MidRollIntervalSeconds: 300,
		SuperChatEnabled:       true,
		MembershipsEnabled:     true,
		MerchandiseEnabled:     true,
	}
}

type monetizationState struct {
	Settings   domain.MonetizationSettings      `json:"settings"`
	Placements map[string][]*domain.AdPlacement `json:"placements"`
	Streams    map[string]*domain.RevenueStream `json:"streams"`
}

// MonetizationService generates ad placements and keeps revenue streams per
// content item and channel. Streams only grow.
type MonetizationService struct {
	mu       sync.Mutex
	state    monetizationState
	snapshot *snapshotter
	notifier Notifier
	log      *logger.Logger
	nowFn    func() time.Time
}

func NewMonetizationService(ctx context.Context, opts EngineOptions, settings domain.MonetizationSettings, notifier Notifier) *MonetizationService {
	if settings.MidRollIntervalSeconds <= 0 {
		settings.MidRollIntervalSeconds = DefaultMonetizationSettings().MidRollIntervalSeconds
	}

	s := &MonetizationService{
		state: monetizationState{
			Settings:   settings,
			Placements: make(map[string][]*domain.AdPlacement),
			Streams:    make(map[string]*domain.RevenueStream),
		},
		snapshot: newSnapshotter(opts, monetizationEngine),
		notifier: notifierOrNop(notifier),
		log:      opts.logger(monetizationEngine),
		nowFn:    opts.clock(),
	}

	var loaded monetizationState
	if s.snapshot.load(ctx, &loaded) {
		if loaded.Placements != nil {
			s.state.Placements = loaded.Placements
		}
		if loaded.Streams != nil {
			s.state.Streams = loaded.Streams
		}
		if loaded.Settings.MidRollIntervalSeconds > 0 {
			s.state.Settings = loaded.Settings
		}
	}
	return s
}

func (s *MonetizationService) Settings() domain.MonetizationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Settings
}

func (s *MonetizationService) UpdateSettings(ctx context.Context, settings domain.MonetizationSettings) error {
	if settings.MidRollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: mid-roll interval must be positive", domain.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Settings = settings
	s.snapshot.save(ctx, s.state)
	return nil
}

// GeneratePlacements lays out ads for a video of durationSeconds. Ids are
// derived from contentID and position, so regenerating keeps the counters of
// placements that still exist.
func (s *MonetizationService) GeneratePlacements(ctx context.Context, contentID string, durationSeconds int) []domain.AdPlacement {
	metrics.EngineOperations.WithLabelValues(monetizationEngine, "generate_placements").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.state.Settings
	var placements []*domain.AdPlacement

	if settings.PreRollEnabled {
		placements = append(placements, &domain.AdPlacement{
			ID:              contentID + "-preroll",
			Type:            domain.AdPreRoll,
			DurationSeconds: preRollSeconds,
		})
	}

	if settings.MidRollEnabled && durationSeconds > midRollMinDuration {
		interval := settings.MidRollIntervalSeconds
		for pos, n := interval, 1; pos < durationSeconds-midRollEndBuffer; pos, n = pos+interval, n+1 {
			position := pos
			placements = append(placements, &domain.AdPlacement{
				ID:              contentID + "-midroll-" + strconv.Itoa(n),
				Type:            domain.AdMidRoll,
				DurationSeconds: midRollSeconds,
				Position:        &position,
			})
		}
	}

	if settings.PostRollEnabled {
		placements = append(placements, &domain.AdPlacement{
			ID:              contentID + "-postroll",
			Type:            domain.AdPostRoll,
			DurationSeconds: postRollSeconds,
		})
	}

	previous := make(map[string]*domain.AdPlacement)
	for _, p := range s.state.Placements[contentID] {
		previous[p.ID] = p
	}
	for _, p := range placements {
		p.ContentID = contentID
		if old, ok := previous[p.ID]; ok {
			p.Revenue, p.Impressions, p.Clicks = old.Revenue, old.Impressions, old.Clicks
		}
	}

	s.state.Placements[contentID] = placements
	s.snapshot.save(ctx, s.state)
	return copyPlacements(placements)
}

// Placements returns the current placements of contentID.
func (s *MonetizationService) Placements(contentID string) []domain.AdPlacement {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyPlacements(s.state.Placements[contentID])
}

// TrackImpression counts one impression and accrues CPM revenue to the
// placement and its content item. False if the placement is unknown.
func (s *MonetizationService) TrackImpression(ctx context.Context, placementID string) bool {
	return s.trackAd(ctx, placementID, func(p *domain.AdPlacement) float64 {
		p.Impressions++
		return adCPM / 1000
	})
}

// TrackClick counts one click and accrues CPC revenue.
func (s *MonetizationService) TrackClick(ctx context.Context, placementID string) bool {
	return s.trackAd(ctx, placementID, func(p *domain.AdPlacement) float64 {
		p.Clicks++
		return adCPC
	})
}

func (s *MonetizationService) trackAd(ctx context.Context, placementID string, count func(*domain.AdPlacement) float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for contentID, placements := range s.state.Placements {
		for _, p := range placements {
			if p.ID != placementID {
				continue
			}
			amount := count(p)
			p.Revenue += amount
			s.stream(contentID).Credit(domain.RevenueAds, amount)
			metrics.RevenueAccrued.WithLabelValues(string(domain.RevenueAds)).Add(amount)
			s.snapshot.save(ctx, s.state)
			return true
		}
	}
	return false
}

type SuperChatRequest struct {
	ChannelID string
	ContentID string
	UserID    string
	Amount    float64
	Message   string
}

// SuperChat credits a paid chat message to the channel after the platform cut.
func (s *MonetizationService) SuperChat(ctx context.Context, req SuperChatRequest) domain.TransactionResult {
	s.mu.Lock()
	enabled := s.state.Settings.SuperChatEnabled
	s.mu.Unlock()
	if !enabled {
		return declined("super chat is disabled")
	}

	result := s.credit(ctx, req.ChannelID, domain.RevenueSuperChat, req.Amount, superChatCut)
	if result.Success {
		s.notify(ctx, domain.Event{
			Type:      domain.EventSuperChat,
			EntityID:  req.ContentID,
			Recipient: req.ChannelID,
			Message:   fmt.Sprintf("Super Chat of $%.2f: %s", req.Amount, req.Message),
			Attributes: map[string]string{
				"transaction_id": result.TransactionID,
				"user_id":        req.UserID,
			},
			OccurredAt: s.nowFn(),
		})
	}
	return result
}

// Membership charges one month of tier for userID on channelID.
func (s *MonetizationService) Membership(ctx context.Context, channelID, userID string, tier domain.MembershipTier) domain.TransactionResult {
	s.mu.Lock()
	enabled := s.state.Settings.MembershipsEnabled
	s.mu.Unlock()
	if !enabled {
		return declined("memberships are disabled")
	}

	price, ok := membershipPrices[tier]
	if !ok {
		return declined(domain.ErrUnknownTier.Error())
	}

	result := s.credit(ctx, channelID, domain.RevenueMemberships, price, membershipCut)
	if result.Success {
		s.notify(ctx, domain.Event{
			Type:       domain.EventMembership,
			EntityID:   channelID,
			Recipient:  channelID,
			Message:    fmt.Sprintf("New %s member", tier),
			Attributes: map[string]string{"transaction_id": result.TransactionID, "user_id": userID, "tier": string(tier)},
			OccurredAt: s.nowFn(),
		})
	}
	return result
}

// Merchandise records a sale of quantity items at unitPrice.
func (s *MonetizationService) Merchandise(ctx context.Context, channelID, itemID string, unitPrice float64, quantity int) domain.TransactionResult {
	s.mu.Lock()
	enabled := s.state.Settings.MerchandiseEnabled
	s.mu.Unlock()
	if !enabled {
		return declined("merchandise is disabled")
	}
	if quantity <= 0 {
		return declined(domain.ErrInvalidAmount.Error())
	}

	result := s.credit(ctx, channelID, domain.RevenueMerchandise, unitPrice*float64(quantity), merchandiseCut)
	if result.Success {
		s.log.Info(ctx, "Merchandise sold", map[string]interface{}{
			"channel_id": channelID,
			"item_id":    itemID,
			"quantity":   quantity,
		})
	}
	return result
}

// Sponsorship credits a sponsor deal in full. It has no feature flag.
func (s *MonetizationService) Sponsorship(ctx context.Context, channelID, sponsor string, amount float64) domain.TransactionResult {
	result := s.credit(ctx, channelID, domain.RevenueSponsorships, amount, 0)
	if result.Success {
		s.log.Info(ctx, "Sponsorship recorded", map[string]interface{}{
			"channel_id": channelID,
			"sponsor":    sponsor,
			"amount":     amount,
		})
	}
	return result
}

func (s *MonetizationService) credit(ctx context.Context, entityID string, source domain.RevenueSource, gross, cut float64) domain.TransactionResult {
	if entityID == "" {
		return declined("missing recipient")
	}
	if gross <= 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return declined(domain.ErrInvalidAmount.Error())
	}
	net := roundCents(gross * (1 - cut))

	s.mu.Lock()
	s.stream(entityID).Credit(source, net)
	s.snapshot.save(ctx, s.state)
	s.mu.Unlock()

	metrics.RevenueAccrued.WithLabelValues(string(source)).Add(net)
	return domain.TransactionResult{
		Success:       true,
		TransactionID: uuid.New().String(),
		Gross:         roundCents(gross),
		Net:           net,
	}
}

func declined(reason string) domain.TransactionResult {
	return domain.TransactionResult{Success: false, Reason: reason}
}

// Revenue returns entityID's stream. Unknown entities have an empty stream.
func (s *MonetizationService) Revenue(entityID string) domain.RevenueStream {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.state.Streams[entityID]; ok {
		return *r
	}
	return domain.RevenueStream{EntityID: entityID}
}

// EstimateEarnings projects ad revenue for a number of views. engagementRate
// is the click-through fraction of impressions, 0.02 meaning two percent.
func EstimateEarnings(views int64, engagementRate float64) domain.EarningsEstimate {
	impressions := float64(views) * 0.8
	clicks := impressions * engagementRate
	return domain.EarningsEstimate{
		Impressions: impressions,
		Clicks:      clicks,
		Revenue:     roundCents(impressions/1000*adCPM + clicks*adCPC),
	}
}

// CheckEligibility applies the partner program thresholds.
func CheckEligibility(stats domain.ChannelStats) domain.Eligibility {
	e := domain.Eligibility{
		Subscribers: stats.Subscribers >= minSubscribers,
		WatchTime:   stats.WatchTimeHours >= minWatchTimeHours,
		Videos:      stats.Videos >= minVideos,
	}
	e.Eligible = e.Subscribers && e.WatchTime && e.Videos
	return e
}

func (s *MonetizationService) stream(entityID string) *domain.RevenueStream {
	r, ok := s.state.Streams[entityID]
	if !ok {
		r = &domain.RevenueStream{EntityID: entityID}
		s.state.Streams[entityID] = r
	}
	return r
}

func (s *MonetizationService) notify(ctx context.Context, event domain.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Error(ctx, "Failed to notify", err, map[string]interface{}{
			"event_type": event.Type,
			"entity_id":  event.EntityID,
		})
	}
}

func copyPlacements(in []*domain.AdPlacement) []domain.AdPlacement {
	out := make([]domain.AdPlacement, 0, len(in))
	for _, p := range in {
		cp := *p
		if p.Position != nil {
			pos := *p.Position
			cp.Position = &pos
		}
		out = append(out, cp)
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
