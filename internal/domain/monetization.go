package domain

type AdType string

const (
	AdPreRoll  AdType = "pre_roll"
	AdMidRoll  AdType = "mid_roll"
	AdPostRoll AdType = "post_roll"
	AdDisplay  AdType = "display"
	AdOverlay  AdType = "overlay"
)

type AdPlacement struct {
	ID              string  `json:"id"`
	ContentID       string  `json:"content_id"`
	Type            AdType  `json:"type"`
	DurationSeconds int     `json:"duration_seconds"`
	Position        *int    `json:"position,omitempty"`
	Revenue         float64 `json:"revenue"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
}

type RevenueSource string

const (
	RevenueAds          RevenueSource = "ads"
	RevenueMemberships  RevenueSource = "memberships"
	RevenueSuperChat    RevenueSource = "super_chat"
	RevenueMerchandise  RevenueSource = "merchandise"
	RevenueSponsorships RevenueSource = "sponsorships"
)

// RevenueStream only ever grows.
type RevenueStream struct {
	EntityID     string  `json:"entity_id"`
	Ads          float64 `json:"ads"`
	Memberships  float64 `json:"memberships"`
	SuperChat    float64 `json:"super_chat"`
	Merchandise  float64 `json:"merchandise"`
	Sponsorships float64 `json:"sponsorships"`
}

func (r RevenueStream) Total() float64 {
	return r.Ads + r.Memberships + r.SuperChat + r.Merchandise + r.Sponsorships
}

func (r *RevenueStream) Credit(source RevenueSource, amount float64) {
	switch source {
	case RevenueAds:
		r.Ads += amount
	case RevenueMemberships:
		r.Memberships += amount
	case RevenueSuperChat:
		r.SuperChat += amount
	case RevenueMerchandise:
		r.Merchandise += amount
	case RevenueSponsorships:
		r.Sponsorships += amount
	}
}

type MonetizationSettings struct {
	PreRollEnabled         bool `json:"pre_roll_enabled"`
	MidRollEnabled         bool `json:"mid_roll_enabled"`
	PostRollEnabled        bool `json:"post_roll_enabled"`
	MidRollIntervalSeconds int  `json:"mid_roll_interval_seconds"`
	SuperChatEnabled       bool `json:"super_chat_enabled"`
	MembershipsEnabled     bool `json:"memberships_enabled"`
	MerchandiseEnabled     bool `json:"merchandise_enabled"`
}

type MembershipTier string

const (
	TierBasic   MembershipTier = "basic"
	TierPremium MembershipTier = "premium"
	TierVIP     MembershipTier = "vip"
)

// TransactionResult is what the revenue operations hand back. Success=false
// carries a Reason and means nothing was mutated.
type TransactionResult struct {
	Success       bool    `json:"success"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Gross         float64 `json:"gross,omitempty"`
	Net           float64 `json:"net,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

type EarningsEstimate struct {
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Revenue     float64 `json:"revenue"`
}

type ChannelStats struct {
	Subscribers    int64   `json:"subscribers"`
	WatchTimeHours float64 `json:"watch_time_hours"`
	Videos         int     `json:"videos"`
}

type Eligibility struct {
	Subscribers bool `json:"subscribers"`
	WatchTime   bool `json:"watch_time"`
	Videos      bool `json:"videos"`
	Eligible    bool `json:"eligible"`
}
