package analytics

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"TrapFlow/internal/domain/models"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

// Retracement and extension ratios, in ascending order.
var (
	retracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	extensionRatios   = []float64{1.272, 1.618, 2.0, 2.618}
)

// Timeframe windows and their confluence weights.
var timeframeWeights = map[string]float64{
	models.TimeframeRealtime: 2.5,
	models.TimeframeShort:    1.0,
	models.TimeframeMedium:   1.5,
	models.TimeframeLong:     2.0,
}

var timeframeWindows = map[string]time.Duration{
	models.TimeframeShort:  15 * time.Minute,
	models.TimeframeMedium: 60 * time.Minute,
	models.TimeframeLong:   240 * time.Minute,
}

// Retracement returns the retracement level for ratio r on (high, low).
func Retracement(high, low, r float64) float64 {
	return low + (high-low)*r
}

// Extension returns the extension level for ratio e (e > 1) on (high, low).
func Extension(high, low, e float64) float64 {
	return high + (high-low)*(e-1)
}

// Levels computes all retracement and extension levels for one (high, low).
func Levels(high, low float64) models.FibLevels {
	fl := models.FibLevels{
		High:        high,
		Low:         low,
		Retracement: make(map[string]float64, len(retracementRatios)),
		Extension:   make(map[string]float64, len(extensionRatios)),
	}
	for _, r := range retracementRatios {
		fl.Retracement[ratioKey(r)] = Retracement(high, low, r)
	}
	for _, e := range extensionRatios {
		fl.Extension[ratioKey(e)] = Extension(high, low, e)
	}
	return fl
}

func ratioKey(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// FibAnalyzer derives multi-timeframe Fibonacci levels and confluence zones
// from recent price history and classifies the market regime. It owns no
// persistent state; everything is recomputed from store reads and the rolling
// windows.
type FibAnalyzer struct {
	st        store.Store
	stats     *WindowedStats
	regime    *RegimeDetector
	log       *logger.Logger
	tolerance float64
}

// NewFibAnalyzer creates an analyzer with the given clustering tolerance in
// price units.
func NewFibAnalyzer(st store.Store, stats *WindowedStats, log *logger.Logger, tolerance float64) *FibAnalyzer {
	if tolerance <= 0 {
		tolerance = 50
	}
	return &FibAnalyzer{
		st:        st,
		stats:     stats,
		regime:    NewRegimeDetector(),
		log:       log,
		tolerance: tolerance,
	}
}

// TimeframeLevels computes (high, low) levels for every timeframe that has
// samples. The realtime view is derived from the raw movement history in the
// store; the timed views from the rolling deques.
func (a *FibAnalyzer) TimeframeLevels(ctx context.Context, now time.Time) map[string]models.FibLevels {
	out := make(map[string]models.FibLevels, 4)

	if high, low, ok := a.realtimeHighLow(ctx); ok {
		out[models.TimeframeRealtime] = Levels(high, low)
	}

	a.stats.mu.RLock()
	hist1m := a.stats.hist1m
	hist5m := a.stats.hist5m
	a.stats.mu.RUnlock()

	for tf, window := range timeframeWindows {
		src := hist1m
		if window > lookbackHour {
			src = hist5m
		}
		if high, low, ok := highLowSince(src, now.Add(-window)); ok {
			out[tf] = Levels(high, low)
		}
	}
	return out
}

// Confluence clusters all levels across timeframes within the tolerance and
// returns zones sorted by weighted strength descending.
func (a *FibAnalyzer) Confluence(levels map[string]models.FibLevels, latestPrice float64) []models.ConfluenceZone {
	flat := flatten(levels)

	zones := make([]models.ConfluenceZone, 0)
	consumed := make([]bool, len(flat))
	for i := range flat {
		if consumed[i] {
			continue
		}
		cluster := []models.FibLevel{flat[i]}
		consumed[i] = true
		for j := i + 1; j < len(flat); j++ {
			if consumed[j] {
				continue
			}
			if math.Abs(flat[j].Price-flat[i].Price) <= a.tolerance {
				cluster = append(cluster, flat[j])
				consumed[j] = true
			}
		}
		if len(cluster) < 2 {
			continue
		}
		zones = append(zones, buildZone(cluster, latestPrice))
	}

	sort.Slice(zones, func(i, j int) bool {
		return zones[i].WeightedStrength > zones[j].WeightedStrength
	})
	return zones
}

// Analyze recomputes levels, confluence, and regime, and writes the results
// to the store.
func (a *FibAnalyzer) Analyze(ctx context.Context, latestPrice float64, now time.Time) {
	levels := a.TimeframeLevels(ctx, now)
	zones := a.Confluence(levels, latestPrice)

	if rt, ok := levels[models.TimeframeRealtime]; ok {
		a.writeJSON(ctx, store.KeyRealtimeFib, rt)
	}
	a.writeJSON(ctx, store.KeyFibConfluence, struct {
		Zones       []models.ConfluenceZone `json:"zones"`
		LatestPrice float64                 `json:"latest_price"`
		ComputedAt  int64                   `json:"computed_at"`
	}{Zones: zones, LatestPrice: latestPrice, ComputedAt: now.Unix()})
}

// ClassifyRegime classifies the market regime from the movement history and
// writes the result to the store.
func (a *FibAnalyzer) ClassifyRegime(ctx context.Context) models.Regime {
	prices := a.recentPrices(ctx, 50)
	r := a.regime.Classify(prices)

	if err := a.st.Set(ctx, store.KeyMarketRegime, r.State); err != nil {
		a.log.Error("store write failed", logger.String("key", store.KeyMarketRegime), logger.Error(err))
	}
	if err := a.st.Set(ctx, store.KeyRegimeMultiplier, strconv.FormatFloat(r.Multiplier, 'f', -1, 64)); err != nil {
		a.log.Error("store write failed", logger.String("key", store.KeyRegimeMultiplier), logger.Error(err))
	}
	return r
}

func (a *FibAnalyzer) realtimeHighLow(ctx context.Context) (high, low float64, ok bool) {
	prices := a.recentPrices(ctx, 100)
	if len(prices) == 0 {
		return 0, 0, false
	}
	high, low = prices[0], prices[0]
	for _, p := range prices[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low, true
}

// recentPrices reads up to count prices from the movement history,
// chronological order (the store list is most-recent-first).
func (a *FibAnalyzer) recentPrices(ctx context.Context, count int) []float64 {
	raw, err := a.st.LRange(ctx, store.KeyMovementHistory, 0, int64(count-1))
	if err != nil {
		a.log.Error("history read failed", logger.Error(err))
		return nil
	}
	out := make([]float64, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		p, err := strconv.ParseFloat(raw[i], 64)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *FibAnalyzer) writeJSON(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		a.log.Error("marshal failed", logger.String("key", key), logger.Error(err))
		return
	}
	if err := a.st.Set(ctx, key, string(b)); err != nil {
		a.log.Error("store write failed", logger.String("key", key), logger.Error(err))
	}
}

func flatten(levels map[string]models.FibLevels) []models.FibLevel {
	// Deterministic order: fixed timeframe sequence, ratios ascending.
	order := []string{models.TimeframeRealtime, models.TimeframeShort, models.TimeframeMedium, models.TimeframeLong}
	flat := make([]models.FibLevel, 0, len(levels)*(len(retracementRatios)+len(extensionRatios)))
	for _, tf := range order {
		fl, ok := levels[tf]
		if !ok {
			continue
		}
		w := timeframeWeights[tf]
		for _, r := range retracementRatios {
			if p, ok := fl.Retracement[ratioKey(r)]; ok {
				flat = append(flat, models.FibLevel{Timeframe: tf, Ratio: ratioKey(r), Price: p, Weight: w})
			}
		}
		for _, e := range extensionRatios {
			if p, ok := fl.Extension[ratioKey(e)]; ok {
				flat = append(flat, models.FibLevel{Timeframe: tf, Ratio: ratioKey(e), Price: p, Weight: w})
			}
		}
	}
	return flat
}

func buildZone(cluster []models.FibLevel, latestPrice float64) models.ConfluenceZone {
	var weightSum, weighted float64
	tfs := make(map[string]struct{}, 4)
	for _, l := range cluster {
		weightSum += l.Weight
		weighted += l.Price * l.Weight
		tfs[l.Timeframe] = struct{}{}
	}
	center := weighted / weightSum

	diversity := float64(len(tfs)) / 3.0
	if diversity > 1 {
		diversity = 1
	}

	return models.ConfluenceZone{
		Center:             center,
		ContributingLevels: cluster,
		Strength:           len(cluster),
		TimeframeDiversity: diversity,
		ProximityScore:     1 / (1 + math.Abs(latestPrice-center)/100),
		WeightedStrength:   weightSum,
	}
}

func highLowSince(pts []models.PricePoint, cutoff time.Time) (high, low float64, ok bool) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, p := range pts {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		ok = true
		if p.Price > high {
			high = p.Price
		}
		if p.Price < low {
			low = p.Price
		}
	}
	if !ok {
		return 0, 0, false
	}
	return high, low, true
}
