package domain

// QualityLevel is one rung of the bitrate ladder.
type QualityLevel struct {
	Name        string `json:"name"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type PlaybackStats struct {
	CurrentTime     float64      `json:"current_time"`
	Duration        float64      `json:"duration"`
	BufferedRanges  []TimeRange  `json:"buffered_ranges"`
	Quality         QualityLevel `json:"quality"`
	BandwidthKbps   int          `json:"bandwidth_kbps"`
	DroppedFrames   int          `json:"dropped_frames"`
	BufferHealthPct float64      `json:"buffer_health_pct"`
}

type ConnectionClass string

const (
	ConnectionSlow2G ConnectionClass = "slow-2g"
	Connection2G     ConnectionClass = "2g"
	Connection3G     ConnectionClass = "3g"
	Connection4G     ConnectionClass = "4g"
	ConnectionWiFi   ConnectionClass = "wifi"
)
