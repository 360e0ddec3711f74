package models

// Timeframe names used by the Fibonacci analyzer.
const (
	TimeframeRealtime = "realtime"
	TimeframeShort    = "short"
	TimeframeMedium   = "medium"
	TimeframeLong     = "long"
)

// FibLevels maps a named ratio to an absolute price for one (high, low) pair.
type FibLevels struct {
	High        float64            `json:"high"`
	Low         float64            `json:"low"`
	Retracement map[string]float64 `json:"retracement"`
	Extension   map[string]float64 `json:"extension"`
}

// FibLevel is one flattened level used as clustering input.
type FibLevel struct {
	Timeframe string  `json:"timeframe"`
	Ratio     string  `json:"ratio"`
	Price     float64 `json:"price"`
	Weight    float64 `json:"weight"`
}

// ConfluenceZone is a price band where levels from several timeframes cluster.
type ConfluenceZone struct {
	Center             float64    `json:"center"`
	ContributingLevels []FibLevel `json:"contributing_levels"`
	Strength           int        `json:"strength"`
	TimeframeDiversity float64    `json:"timeframe_diversity"`
	ProximityScore     float64    `json:"proximity_score"`
	WeightedStrength   float64    `json:"weighted_strength"`
}

// Market regimes and their threshold multipliers.
const (
	RegimeTrending = "trending"
	RegimeRanging  = "ranging"
	RegimeMixed    = "mixed"
	RegimeUnknown  = "unknown"
)

// Regime is the coarse classification of recent price behavior.
type Regime struct {
	State               string  `json:"state"`
	Multiplier          float64 `json:"multiplier"`
	DirectionalStrength float64 `json:"directional_strength"`
	Volatility          float64 `json:"volatility"`
}
