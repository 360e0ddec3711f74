package analytics

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"TrapFlow/internal/domain/models"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

const (
	hist1mCap     = 60
	hist5mCap     = 60
	volWindowCap  = 20
	fiveMinutes   = 5 * time.Minute
	lookbackHour  = time.Hour
)

// WindowedStats maintains bounded rolling price deques at 1-minute and
// 5-minute granularity and derives volatility metrics from them.
type WindowedStats struct {
	st  store.Store
	log *logger.Logger

	mu        sync.RWMutex
	hist1m    []models.PricePoint
	hist5m    []models.PricePoint
	volWindow []float64 // recent volatility_1min samples for the percentile check
	prevVol1m float64
	accel     float64
	lastTS    time.Time
}

// NewWindowedStats creates an empty stats tracker writing to the given store.
func NewWindowedStats(st store.Store, log *logger.Logger) *WindowedStats {
	return &WindowedStats{st: st, log: log}
}

// UpdatePriceData ingests one price sample, recomputes the volatility metrics,
// and writes them to the store. A sample with a timestamp earlier than the
// previous one is accepted (clocks jitter) but the acceleration update is
// skipped for that step.
func (w *WindowedStats) UpdatePriceData(ctx context.Context, price float64, ts time.Time) {
	w.mu.Lock()

	monotonic := w.lastTS.IsZero() || !ts.Before(w.lastTS)
	if !monotonic {
		w.log.Warn("non-monotonic tick timestamp",
			logger.Int64("ts", ts.Unix()),
			logger.Int64("prev_ts", w.lastTS.Unix()))
	}
	w.lastTS = ts

	w.hist1m = append(w.hist1m, models.PricePoint{Timestamp: ts, Price: price})
	if len(w.hist1m) > hist1mCap {
		w.hist1m = w.hist1m[1:]
	}

	if n := len(w.hist5m); n == 0 || ts.Sub(w.hist5m[n-1].Timestamp) >= fiveMinutes {
		w.hist5m = append(w.hist5m, models.PricePoint{Timestamp: ts, Price: price})
		if len(w.hist5m) > hist5mCap {
			w.hist5m = w.hist5m[1:]
		}
	}

	vol1m := diffStddev(prices(w.hist1m))
	vol5m := diffStddev(prices(w.hist5m))
	if monotonic {
		w.accel = vol1m - w.prevVol1m
	}
	w.prevVol1m = vol1m

	w.volWindow = append(w.volWindow, vol1m)
	if len(w.volWindow) > volWindowCap {
		w.volWindow = w.volWindow[1:]
	}
	accel := w.accel
	w.mu.Unlock()

	w.writeMetric(ctx, store.KeyVolatility1m, vol1m)
	w.writeMetric(ctx, store.KeyVolatility5m, vol5m)
	w.writeMetric(ctx, store.KeyAcceleration1m, accel)
}

// LastThree returns the three most recent 1-minute prices, oldest first.
// ok is false when fewer than three samples exist.
func (w *WindowedStats) LastThree() (p0, p1, p2 float64, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := len(w.hist1m)
	if n < 3 {
		return 0, 0, 0, false
	}
	return w.hist1m[n-3].Price, w.hist1m[n-2].Price, w.hist1m[n-1].Price, true
}

// HourHighLow returns the high and low over samples from the last hour,
// skipping the newest excludeLast samples so the current excursion does not
// count toward its own liquidity level. ok is false when no samples remain.
func (w *WindowedStats) HourHighLow(now time.Time, excludeLast int) (high, low float64, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	hist := w.hist1m
	if excludeLast > 0 && excludeLast < len(hist) {
		hist = hist[:len(hist)-excludeLast]
	} else if excludeLast >= len(hist) {
		return 0, 0, false
	}

	cutoff := now.Add(-lookbackHour)
	high, low = math.Inf(-1), math.Inf(1)
	for _, p := range hist {
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

// Vol1mPercentile returns the q-th percentile of the rolling volatility_1min
// window, 0 when empty.
func (w *WindowedStats) Vol1mPercentile(q float64) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return percentile(w.volWindow, q)
}

// History returns the most recent count samples of the requested window
// (1-minute or 5-minute granularity), oldest first.
func (w *WindowedStats) History(minutes, count int) []models.PricePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()

	src := w.hist1m
	if minutes >= 5 {
		src = w.hist5m
	}
	if count > len(src) {
		count = len(src)
	}
	out := make([]models.PricePoint, count)
	copy(out, src[len(src)-count:])
	return out
}

// Len1m reports how many 1-minute samples are held.
func (w *WindowedStats) Len1m() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.hist1m)
}

func (w *WindowedStats) writeMetric(ctx context.Context, key string, v float64) {
	if err := w.st.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		w.log.Error("store write failed", logger.String("key", key), logger.Error(err))
	}
}

func prices(pts []models.PricePoint) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Price
	}
	return out
}

// diffStddev is the population standard deviation of first differences.
// Windows with fewer than two samples yield 0; the result is NaN-free.
func diffStddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	diffs := make([]float64, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		diffs[i-1] = vals[i] - vals[i-1]
	}
	return stddev(diffs)
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(len(vals)))
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0
	}
	return sd
}

// percentile computes the q-th percentile (0..100) by linear interpolation
// over a copy of vals.
func percentile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
