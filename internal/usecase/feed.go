package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"TrapFlow/internal/domain/models"
	drepo "TrapFlow/internal/domain/repository"
	"TrapFlow/internal/services/analytics"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

const historyLen = 100

// Feed owns the trade stream and the Feed-keyed slice of the store: last
// price/volume/update time and the bounded raw histories. It drives the tick
// pipeline synchronously for every accepted tick.
type Feed struct {
	stream  drepo.MarketStream
	st      store.Store
	stats   *analytics.WindowedStats
	pipe    *TickPipeline
	metrics drepo.Metrics
	log     *logger.Logger

	storeRetryDelay  time.Duration
	startupStoreWait time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFeed creates a Feed.
func NewFeed(
	stream drepo.MarketStream,
	st store.Store,
	stats *analytics.WindowedStats,
	pipe *TickPipeline,
	metrics drepo.Metrics,
	log *logger.Logger,
	storeRetryDelay, startupStoreWait time.Duration,
) *Feed {
	if storeRetryDelay <= 0 {
		storeRetryDelay = time.Minute
	}
	if startupStoreWait <= 0 {
		startupStoreWait = 5 * time.Minute
	}
	return &Feed{
		stream:           stream,
		st:               st,
		stats:            stats,
		pipe:             pipe,
		metrics:          metrics,
		log:              log,
		storeRetryDelay:  storeRetryDelay,
		startupStoreWait: startupStoreWait,
	}
}

// Start verifies store health, connects the stream, and launches the consume
// loop. It is idempotent; a second call is a no-op. A store that stays
// unreachable past the startup wait is a fatal configuration error.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.mu.Unlock()

	if err := f.waitForStore(ctx, f.startupStoreWait); err != nil {
		return fmt.Errorf("store unreachable at startup: %w", err)
	}

	go f.run(ctx)
	return nil
}

// Stop closes the stream and stops the consume loop. Idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	cancel := f.cancel
	done := f.done
	f.mu.Unlock()

	cancel()
	_ = f.stream.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		f.log.Warn("feed drain timed out")
	}
}

// IsConnected reports whether the trade stream is up.
func (f *Feed) IsConnected() bool { return f.stream.IsConnected() }

// CurrentPrice returns the last observed price, 0 if none.
func (f *Feed) CurrentPrice(ctx context.Context) float64 {
	v, err := f.st.Get(ctx, store.KeyLastPrice)
	if err != nil {
		return 0
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return p
}

// PriceHistory returns the most recent count samples of the
// minutes-aggregated window, oldest first.
func (f *Feed) PriceHistory(minutes, count int) []models.PricePoint {
	return f.stats.History(minutes, count)
}

// run is the outer connect/consume/reconnect loop. Reconnects are unbounded;
// store health is verified before every (re)open.
func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	if err := f.stream.Connect(ctx); err != nil {
		f.log.Error("stream connect failed", logger.Error(err))
		f.metrics.RecordError("stream")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if !f.stream.IsConnected() {
			// check store health before reopening the socket
			f.ensureStoreHealthy(ctx)
			if err := f.stream.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				f.log.Error("stream reconnect failed", logger.Error(err))
				f.metrics.RecordError("stream")
				continue
			}
		}
		f.consume(ctx)
	}
}

// consume drains the stream until a transport error or shutdown.
func (f *Feed) consume(ctx context.Context) {
	trCh, errCh := f.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				f.log.Error("stream error", logger.Error(err))
				f.metrics.RecordError("stream")
			}
			return
		case t := <-trCh:
			if t == nil {
				return
			}
			// drain to the newest buffered tick; stale ticks are worthless
			t = drainLatest(trCh, t)
			f.processTick(ctx, t)
		}
	}
}

func drainLatest(ch <-chan *models.Tick, t *models.Tick) *models.Tick {
	for {
		select {
		case next := <-ch:
			if next == nil {
				return t
			}
			t = next
		default:
			return t
		}
	}
}

// processTick writes the Feed-owned keys and invokes the pipeline. A tick
// whose price equals the previous distinct price changes no state.
func (f *Feed) processTick(ctx context.Context, t *models.Tick) {
	f.metrics.RecordTick()

	prev := 0.0
	if v, err := f.st.Get(ctx, store.KeyPrevPrice); err == nil {
		prev, _ = strconv.ParseFloat(v, 64)
	}
	if prev == t.Price {
		return
	}

	price := formatFloat(t.Price)
	f.setKey(ctx, store.KeyLastPrice, price)
	f.setKey(ctx, store.KeyLastVolume, formatFloat(t.Volume))
	f.setKey(ctx, store.KeyLastUpdateTime, strconv.FormatInt(t.Timestamp.Unix(), 10))

	f.pushTrimmed(ctx, store.KeyMovementHistory, price)
	f.pushTrimmed(ctx, store.KeyVolumeHistory, formatFloat(t.Volume))
	if prev > 0 {
		f.pushTrimmed(ctx, store.KeyAbsChangeHistory, formatFloat(math.Abs(t.Price-prev)*100))
	}

	f.setKey(ctx, store.KeyPrevPrice, price)
	f.metrics.RecordLastPrice(t.Price)

	f.pipe.Process(ctx, t, prev)
}

// setKey writes a scalar with one retry, per the bus failure model.
func (f *Feed) setKey(ctx context.Context, key, value string) {
	if err := f.st.Set(ctx, key, value); err != nil {
		f.log.Error("store write failed, retrying", logger.String("key", key), logger.Error(err))
		f.metrics.RecordError("store_write")
		if err := f.st.Set(ctx, key, value); err != nil {
			f.log.Error("store write failed, dropping", logger.String("key", key), logger.Error(err))
		}
	}
}

func (f *Feed) pushTrimmed(ctx context.Context, key, value string) {
	if err := f.st.LPush(ctx, key, value); err != nil {
		f.log.Error("store push failed, retrying", logger.String("key", key), logger.Error(err))
		f.metrics.RecordError("store_write")
		if err := f.st.LPush(ctx, key, value); err != nil {
			f.log.Error("store push failed, dropping", logger.String("key", key), logger.Error(err))
			return
		}
	}
	if err := f.st.LTrim(ctx, key, 0, historyLen-1); err != nil {
		f.log.Error("store trim failed", logger.String("key", key), logger.Error(err))
	}
}

// waitForStore pings the store until it responds or the deadline passes.
func (f *Feed) waitForStore(ctx context.Context, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		err := f.st.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		f.log.Warn("store unhealthy, waiting", logger.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// ensureStoreHealthy blocks until the store answers a ping, waiting the
// configured retry delay between attempts.
func (f *Feed) ensureStoreHealthy(ctx context.Context) {
	for {
		if err := f.st.Ping(ctx); err == nil {
			return
		} else {
			f.log.Warn("store unhealthy before reconnect", logger.Error(err))
			f.metrics.RecordError("store_health")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.storeRetryDelay):
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
