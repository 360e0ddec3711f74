package analytics

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"TrapFlow/internal/domain/models"
	"TrapFlow/internal/domain/repository"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

const (
	hfScoreThreshold    = 3
	hfAccelThreshold    = 0.2
	hfRecentTrapWindow  = 10 * time.Minute
	hfRecentTrapCount   = 3
	hfSchumannThreshold = 12.0
	trapQueueSize       = 200
)

// HFDetector decides whether the market is in a high-frequency trap regime
// and classifies individual ticks as liquidity grabs. It owns the HF-mode
// slot and the trap event ring.
type HFDetector struct {
	st      store.Store
	stats   *WindowedStats
	ring    *EventRing
	pub     repository.TrapPublisher
	metrics repository.Metrics
	log     *logger.Logger

	cooldown        time.Duration
	active          bool
	multiplier      float64
	activatedAt     time.Time
	lastDeactivated time.Time
}

// NewHFDetector creates a detector. pub may be nil when no downstream
// notifier is configured.
func NewHFDetector(
	st store.Store,
	stats *WindowedStats,
	pub repository.TrapPublisher,
	metrics repository.Metrics,
	log *logger.Logger,
	eventLogSize int,
	cooldown time.Duration,
) *HFDetector {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &HFDetector{
		st:         st,
		stats:      stats,
		ring:       NewEventRing(eventLogSize),
		pub:        pub,
		metrics:    metrics,
		log:        log,
		cooldown:   cooldown,
		multiplier: 1.0,
	}
}

// Events returns the event ring for read-only consumers.
func (d *HFDetector) Events() *EventRing { return d.ring }

// State returns the current HF-mode slot.
func (d *HFDetector) State() models.HFModeState {
	s := models.HFModeState{Active: d.active, Multiplier: d.multiplier}
	if d.active {
		at := d.activatedAt
		s.ActivatedAt = &at
	}
	return s
}

// DetectHFMode scores the current conditions and flips the mode slot.
// Missing store keys read as 0; the method never fails. Mode changes within
// the cooldown window of the previous transition are suppressed.
func (d *HFDetector) DetectHFMode(ctx context.Context, latestPrice, schumann float64, now time.Time) (bool, float64) {
	vol1m := d.readFloat(ctx, store.KeyVolatility1m)
	accel := d.readFloat(ctx, store.KeyAcceleration1m)
	recentTraps := d.ring.CountSince(now.Add(-hfRecentTrapWindow))

	score := 0
	p75 := d.stats.Vol1mPercentile(75)
	if vol1m > p75 && p75 > 0 {
		score++
	}
	if accel > hfAccelThreshold {
		score++
	}
	if recentTraps >= hfRecentTrapCount {
		score += 2
	}
	if schumann >= hfSchumannThreshold {
		score++
	}

	wantActive := score >= hfScoreThreshold
	switch {
	case wantActive && !d.active:
		if !d.lastDeactivated.IsZero() && now.Sub(d.lastDeactivated) < d.cooldown {
			// re-armed too recently; hold off
			break
		}
		d.active = true
		d.activatedAt = now
		d.multiplier = math.Max(0.5, 1.0-0.1*float64(score))
		d.log.Info("hf trap mode activated",
			logger.Int("score", score),
			logger.Float64("multiplier", d.multiplier),
			logger.Int("recent_traps", recentTraps))
	case wantActive && d.active:
		d.multiplier = math.Max(0.5, 1.0-0.1*float64(score))
	case !wantActive && d.active:
		if now.Sub(d.activatedAt) < d.cooldown {
			// hold active through the cooldown to avoid flapping
			break
		}
		d.active = false
		d.multiplier = 1.0
		d.lastDeactivated = now
		d.log.Info("hf trap mode deactivated")
	}

	d.writeState(ctx)
	d.metrics.RecordHFMode(d.active, d.multiplier)
	return d.active, d.multiplier
}

// DetectLiquidityGrab classifies the latest tick against the last three
// 1-minute samples. It returns an empty kind when nothing matched. The HF
// multiplier lowers the swing thresholds while the mode is active.
func (d *HFDetector) DetectLiquidityGrab(now time.Time) (string, float64) {
	p0, p1, p2, ok := d.stats.LastThree()
	if !ok || p0 <= 0 {
		return "", 0.0
	}

	swing := math.Abs(p1 - p0)
	reverse := math.Abs(p2 - p1)
	oppositeDirection := (p1-p0)*(p2-p1) < 0

	if swing >= 0.003*p0*d.multiplier && reverse >= 0.7*swing && oppositeDirection {
		confidence := math.Min(1.0, swing/(0.01*p0))
		return models.TrapVolatilityLiquidityGrab, confidence
	}

	if swing >= 0.002*p0*d.multiplier {
		// liquidity level is the last-hour high/low before the excursion
		if high, low, ok := d.stats.HourHighLow(now, 2); ok {
			pierced := (p1 > high && p2 < p1) || (p1 < low && p2 > p1)
			if pierced {
				return models.TrapStopHunt, 0.8
			}
		}
	}

	return "", 0.0
}

// RegisterTrapEvent appends the event to the ring, pushes it onto the trap
// queue zset (score = epoch seconds, trimmed to the newest 200), and fans it
// out to the downstream notifier when one is configured.
func (d *HFDetector) RegisterTrapEvent(ctx context.Context, kind string, confidence, priceChange float64, now time.Time) {
	e := models.TrapEvent{
		Timestamp:   now,
		Kind:        kind,
		Confidence:  confidence,
		PriceChange: priceChange,
	}
	d.ring.Append(e)
	d.metrics.RecordTrapEvent(kind)

	b, err := json.Marshal(e)
	if err != nil {
		d.log.Error("marshal trap event", logger.Error(err))
		return
	}
	if err := d.st.ZAdd(ctx, store.KeyTrapQueue, float64(now.Unix()), string(b)); err != nil {
		d.log.Error("trap queue write failed", logger.Error(err))
		d.metrics.RecordError("store_write")
	}
	if n, err := d.st.ZCard(ctx, store.KeyTrapQueue); err == nil && n > trapQueueSize {
		if err := d.st.ZRemRangeByRank(ctx, store.KeyTrapQueue, 0, n-trapQueueSize-1); err != nil {
			d.log.Error("trap queue trim failed", logger.Error(err))
		}
	}

	if d.pub != nil {
		if err := d.pub.Publish(ctx, &e); err != nil {
			d.log.Error("trap event publish failed", logger.Error(err))
			d.metrics.RecordError("publish")
		}
	}

	d.log.Info("trap event registered",
		logger.String("kind", kind),
		logger.Float64("confidence", confidence),
		logger.Float64("price_change", priceChange))
}

// readFloat reads a decimal store key, treating misses and junk as 0.
func (d *HFDetector) readFloat(ctx context.Context, key string) float64 {
	v, err := d.st.Get(ctx, key)
	if err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

func (d *HFDetector) writeState(ctx context.Context) {
	active := "0"
	if d.active {
		active = "1"
	}
	if err := d.st.Set(ctx, store.KeyHFModeActive, active); err != nil {
		d.log.Error("store write failed", logger.String("key", store.KeyHFModeActive), logger.Error(err))
	}
	if err := d.st.Set(ctx, store.KeyHFMultiplier, strconv.FormatFloat(d.multiplier, 'f', -1, 64)); err != nil {
		d.log.Error("store write failed", logger.String("key", store.KeyHFMultiplier), logger.Error(err))
	}
}
