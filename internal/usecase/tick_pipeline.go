package usecase

import (
	"context"
	"strconv"
	"time"

	"TrapFlow/internal/domain/models"
	"TrapFlow/internal/domain/repository"
	"TrapFlow/internal/services/analytics"
	"TrapFlow/pkg/store"
)

const schumannBaseline = 7.83

// TickPipeline runs the derivation stages for one accepted tick,
// synchronously and in order: windowed stats, regime/fibonacci analysis,
// HF-mode scoring, liquidity-grab classification. All writes for tick T land
// before tick T+1 enters.
type TickPipeline struct {
	st       store.Store
	stats    *analytics.WindowedStats
	fib      *analytics.FibAnalyzer
	detector *analytics.HFDetector
	metrics  repository.Metrics

	confluenceEvery time.Duration
	lastConfluence  time.Time
}

// NewTickPipeline creates the per-tick orchestrator.
func NewTickPipeline(
	st store.Store,
	stats *analytics.WindowedStats,
	fib *analytics.FibAnalyzer,
	detector *analytics.HFDetector,
	metrics repository.Metrics,
	confluenceEvery time.Duration,
) *TickPipeline {
	if confluenceEvery <= 0 {
		confluenceEvery = 5 * time.Second
	}
	return &TickPipeline{
		st:              st,
		stats:           stats,
		fib:             fib,
		detector:        detector,
		metrics:         metrics,
		confluenceEvery: confluenceEvery,
	}
}

// Process runs all stages for one tick. prevPrice is the previous distinct
// price, 0 when this is the first tick.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick, prevPrice float64) {
	start := time.Now()

	p.stats.UpdatePriceData(ctx, t.Price, t.Timestamp)
	p.metrics.RecordLatency("stats", time.Since(start).Seconds())

	fibStart := time.Now()
	p.fib.ClassifyRegime(ctx)
	// confluence clustering is the heavy stage; recompute on event-time ticks
	if t.Timestamp.Sub(p.lastConfluence) >= p.confluenceEvery {
		p.fib.Analyze(ctx, t.Price, t.Timestamp)
		p.lastConfluence = t.Timestamp
	}
	p.metrics.RecordLatency("fibonacci", time.Since(fibStart).Seconds())

	detectStart := time.Now()
	p.detector.DetectHFMode(ctx, t.Price, p.schumann(ctx), t.Timestamp)

	if kind, confidence := p.detector.DetectLiquidityGrab(t.Timestamp); kind != "" {
		change := 0.0
		if prevPrice > 0 {
			change = (t.Price - prevPrice) / prevPrice
		}
		p.detector.RegisterTrapEvent(ctx, kind, confidence, change, t.Timestamp)
	}
	p.metrics.RecordLatency("detector", time.Since(detectStart).Seconds())
}

// schumann reads the external resonance scalar, falling back to the quiet
// baseline when the feed is absent.
func (p *TickPipeline) schumann(ctx context.Context) float64 {
	v, err := p.st.Get(ctx, store.KeySchumann)
	if err != nil {
		return schumannBaseline
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return schumannBaseline
	}
	return f
}
