package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrapFlow/internal/domain/models"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

type nopMetrics struct{}

func (nopMetrics) RecordTick()                         {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLastPrice(float64)             {}
func (nopMetrics) RecordTrapEvent(string)              {}
func (nopMetrics) RecordHFMode(bool, float64)          {}
func (nopMetrics) RecordLatency(string, float64)       {}

func newDetector(t *testing.T) (*HFDetector, *WindowedStats, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	stats := NewWindowedStats(ms, logger.Nop())
	d := NewHFDetector(ms, stats, nil, nopMetrics{}, logger.Nop(), 200, 30*time.Second)
	return d, stats, ms
}

func seedRecentTraps(d *HFDetector, now time.Time, n int) {
	for i := 0; i < n; i++ {
		d.ring.Append(models.TrapEvent{Timestamp: now.Add(-time.Minute), Kind: models.TrapStopHunt})
	}
}

func TestHFModeActivatesAtScoreThree(t *testing.T) {
	d, _, ms := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// 3 recent traps (+2) and elevated schumann (+1) reach the threshold
	seedRecentTraps(d, now, 3)
	active, mult := d.DetectHFMode(ctx, 30000, 13, now)

	assert.True(t, active)
	assert.InDelta(t, 0.7, mult, 1e-9)

	v, err := ms.Get(ctx, store.KeyHFModeActive)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, err = ms.Get(ctx, store.KeyHFMultiplier)
	require.NoError(t, err)
	assert.Equal(t, "0.7", v)
}

func TestHFModeStaysOffBelowThreshold(t *testing.T) {
	d, _, ms := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// schumann alone scores 1
	active, mult := d.DetectHFMode(ctx, 30000, 13, now)

	assert.False(t, active)
	assert.Equal(t, 1.0, mult)

	v, err := ms.Get(ctx, store.KeyHFModeActive)
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestHFModeCooldownHoldsActive(t *testing.T) {
	d, _, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedRecentTraps(d, now, 3)
	active, _ := d.DetectHFMode(ctx, 30000, 13, now)
	require.True(t, active)

	// conditions clear 10s later: still inside the cooldown, mode holds
	d.ring = NewEventRing(200)
	active, mult := d.DetectHFMode(ctx, 30000, 0, now.Add(10*time.Second))
	assert.True(t, active)
	assert.InDelta(t, 0.7, mult, 1e-9)

	// past the cooldown the mode releases
	active, mult = d.DetectHFMode(ctx, 30000, 0, now.Add(31*time.Second))
	assert.False(t, active)
	assert.Equal(t, 1.0, mult)
}

func TestHFModeReactivationCooldown(t *testing.T) {
	d, _, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedRecentTraps(d, now, 3)
	active, _ := d.DetectHFMode(ctx, 30000, 13, now)
	require.True(t, active)

	d.ring = NewEventRing(200)
	active, _ = d.DetectHFMode(ctx, 30000, 0, now.Add(31*time.Second))
	require.False(t, active)

	// conditions return 10s after deactivation: re-arming is suppressed
	seedRecentTraps(d, now.Add(40*time.Second), 3)
	active, _ = d.DetectHFMode(ctx, 30000, 13, now.Add(41*time.Second))
	assert.False(t, active)

	// and allowed once the cooldown has elapsed
	active, _ = d.DetectHFMode(ctx, 30000, 13, now.Add(62*time.Second))
	assert.True(t, active)
}

func TestHFModeVolatilityScoring(t *testing.T) {
	d, stats, ms := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stats.volWindow = []float64{1, 1, 1, 1}
	require.NoError(t, ms.Set(ctx, store.KeyVolatility1m, "5"))
	require.NoError(t, ms.Set(ctx, store.KeyAcceleration1m, "0.5"))

	// vol above p75 (+1) and acceleration above 0.2 (+1) plus schumann
	// (+1) reach the threshold without any recorded traps
	active, mult := d.DetectHFMode(ctx, 30000, 13, now)
	assert.True(t, active)
	assert.InDelta(t, 0.7, mult, 1e-9)
}

func TestDetectVolatilityLiquidityGrab(t *testing.T) {
	d, stats, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// sharp 120-point swing followed by a 100-point reversal
	stats.UpdatePriceData(ctx, 30000, now)
	stats.UpdatePriceData(ctx, 30120, now.Add(time.Second))
	stats.UpdatePriceData(ctx, 30020, now.Add(2*time.Second))

	kind, conf := d.DetectLiquidityGrab(now.Add(2 * time.Second))
	assert.Equal(t, models.TrapVolatilityLiquidityGrab, kind)
	assert.InDelta(t, 0.4, conf, 1e-9)
}

func TestDetectStopHunt(t *testing.T) {
	d, stats, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// prior hour high 30050; the spike pierces it and reverses
	stats.UpdatePriceData(ctx, 30000, now)
	stats.UpdatePriceData(ctx, 30050, now.Add(time.Second))
	stats.UpdatePriceData(ctx, 30010, now.Add(2*time.Second))
	stats.UpdatePriceData(ctx, 30100, now.Add(3*time.Second))
	stats.UpdatePriceData(ctx, 30040, now.Add(4*time.Second))

	kind, conf := d.DetectLiquidityGrab(now.Add(4 * time.Second))
	assert.Equal(t, models.TrapStopHunt, kind)
	assert.Equal(t, 0.8, conf)
}

func TestDetectNothingOnQuietTape(t *testing.T) {
	d, stats, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stats.UpdatePriceData(ctx, 30000, now)
	stats.UpdatePriceData(ctx, 30005, now.Add(time.Second))
	stats.UpdatePriceData(ctx, 30003, now.Add(2*time.Second))

	kind, conf := d.DetectLiquidityGrab(now.Add(2 * time.Second))
	assert.Empty(t, kind)
	assert.Equal(t, 0.0, conf)
}

func TestDetectNeedsThreeSamples(t *testing.T) {
	d, stats, _ := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stats.UpdatePriceData(ctx, 30000, now)
	stats.UpdatePriceData(ctx, 30200, now.Add(time.Second))

	kind, _ := d.DetectLiquidityGrab(now.Add(time.Second))
	assert.Empty(t, kind)
}

func TestRegisterTrapEvent(t *testing.T) {
	d, _, ms := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	d.RegisterTrapEvent(ctx, models.TrapStopHunt, 0.8, -0.002, now)

	assert.Equal(t, 1, d.ring.Len())

	members, err := ms.ZRangeByScore(ctx, store.KeyTrapQueue, float64(now.Unix()), float64(now.Unix()))
	require.NoError(t, err)
	require.Len(t, members, 1)

	var e models.TrapEvent
	require.NoError(t, json.Unmarshal([]byte(members[0]), &e))
	assert.Equal(t, models.TrapStopHunt, e.Kind)
	assert.Equal(t, 0.8, e.Confidence)
}

func TestTrapQueueTrimmedToNewest(t *testing.T) {
	d, _, ms := newDetector(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 210; i++ {
		d.RegisterTrapEvent(ctx, fmt.Sprintf("%s %d", models.TrapStopHunt, i), 0.8, 0, now.Add(time.Duration(i)*time.Second))
	}

	n, err := ms.ZCard(ctx, store.KeyTrapQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(trapQueueSize), n)

	// the oldest entries are the ones evicted
	old, err := ms.ZRangeByScore(ctx, store.KeyTrapQueue, float64(now.Unix()), float64(now.Add(9*time.Second).Unix()))
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestEventRingBounded(t *testing.T) {
	r := NewEventRing(200)
	now := time.Now().UTC()

	for i := 0; i < 250; i++ {
		r.Append(models.TrapEvent{Timestamp: now.Add(time.Duration(i) * time.Second), Confidence: float64(i)})
	}

	assert.Equal(t, 200, r.Len())
	snap := r.Snapshot()
	require.Len(t, snap, 200)
	assert.Equal(t, 50.0, snap[0].Confidence)
	assert.Equal(t, 249.0, snap[199].Confidence)
}

func TestCountSince(t *testing.T) {
	r := NewEventRing(10)
	now := time.Now().UTC()

	r.Append(models.TrapEvent{Timestamp: now.Add(-15 * time.Minute)})
	r.Append(models.TrapEvent{Timestamp: now.Add(-5 * time.Minute)})
	r.Append(models.TrapEvent{Timestamp: now})

	assert.Equal(t, 2, r.CountSince(now.Add(-10*time.Minute)))
}
