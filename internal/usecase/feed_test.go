package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrapFlow/internal/domain/models"
	"TrapFlow/internal/services/analytics"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

type stubMetrics struct{}

func (stubMetrics) RecordTick()                   {}
func (stubMetrics) RecordError(string)            {}
func (stubMetrics) RecordLastPrice(float64)       {}
func (stubMetrics) RecordTrapEvent(string)        {}
func (stubMetrics) RecordHFMode(bool, float64)    {}
func (stubMetrics) RecordLatency(string, float64) {}

type fakeStream struct {
	mu        sync.Mutex
	connected bool
	ticks     chan *models.Tick
	errs      chan error
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		ticks: make(chan *models.Tick, 16),
		errs:  make(chan error, 1),
	}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeStream) Reconnect(ctx context.Context) error { return s.Connect(ctx) }

func (s *fakeStream) Read(context.Context) (<-chan *models.Tick, <-chan error) {
	return s.ticks, s.errs
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.closeOnce.Do(func() { close(s.ticks) })
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func newTestFeed(t *testing.T) (*Feed, *fakeStream, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	log := logger.Nop()
	stats := analytics.NewWindowedStats(ms, log)
	fib := analytics.NewFibAnalyzer(ms, stats, log, 50)
	det := analytics.NewHFDetector(ms, stats, nil, stubMetrics{}, log, 200, 30*time.Second)
	pipe := NewTickPipeline(ms, stats, fib, det, stubMetrics{}, 5*time.Second)
	stream := newFakeStream()
	f := NewFeed(stream, ms, stats, pipe, stubMetrics{}, log, time.Second, time.Second)
	return f, stream, ms
}

func listLen(t *testing.T, ms *store.MemoryStore, key string) int {
	t.Helper()
	vals, err := ms.LRange(context.Background(), key, 0, -1)
	require.NoError(t, err)
	return len(vals)
}

func TestProcessTickColdStart(t *testing.T) {
	f, _, ms := newTestFeed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.processTick(ctx, &models.Tick{Timestamp: now, Price: 85000.5, Volume: 0.01})

	v, err := ms.Get(ctx, store.KeyLastPrice)
	require.NoError(t, err)
	assert.Equal(t, "85000.5", v)

	v, err = ms.Get(ctx, store.KeyLastVolume)
	require.NoError(t, err)
	assert.Equal(t, "0.01", v)

	v, err = ms.Get(ctx, store.KeyLastUpdateTime)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(now.Unix(), 10), v)

	assert.Equal(t, 1, listLen(t, ms, store.KeyMovementHistory))
	assert.Equal(t, 1, listLen(t, ms, store.KeyVolumeHistory))
	// no previous price, so no change sample yet
	assert.Equal(t, 0, listLen(t, ms, store.KeyAbsChangeHistory))
}

func TestProcessTickDuplicatePriceIsNoOp(t *testing.T) {
	f, _, ms := newTestFeed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.processTick(ctx, &models.Tick{Timestamp: now, Price: 85000.5, Volume: 0.01})
	f.processTick(ctx, &models.Tick{Timestamp: now.Add(time.Second), Price: 85000.5, Volume: 0.5})

	assert.Equal(t, 1, listLen(t, ms, store.KeyMovementHistory))
	v, err := ms.Get(ctx, store.KeyLastUpdateTime)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(now.Unix(), 10), v)
}

func TestProcessTickRecordsAbsoluteChange(t *testing.T) {
	f, _, ms := newTestFeed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.processTick(ctx, &models.Tick{Timestamp: now, Price: 85000, Volume: 1})
	f.processTick(ctx, &models.Tick{Timestamp: now.Add(time.Second), Price: 85002.5, Volume: 1})

	vals, err := ms.LRange(ctx, store.KeyAbsChangeHistory, 0, -1)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, "250", vals[0])
}

func TestHistoriesCappedAtHundred(t *testing.T) {
	f, _, ms := newTestFeed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 150; i++ {
		f.processTick(ctx, &models.Tick{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Price:     85000 + float64(i),
			Volume:    1,
		})
	}

	assert.Equal(t, historyLen, listLen(t, ms, store.KeyMovementHistory))
	assert.Equal(t, historyLen, listLen(t, ms, store.KeyAbsChangeHistory))
}

func TestPipelineWritesRegimeKeys(t *testing.T) {
	f, _, ms := newTestFeed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 50; i++ {
		f.processTick(ctx, &models.Tick{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Price:     30000 + float64(i)*10,
			Volume:    1,
		})
	}

	v, err := ms.Get(ctx, store.KeyMarketRegime)
	require.NoError(t, err)
	assert.Equal(t, "trending", v)

	v, err = ms.Get(ctx, store.KeyRegimeMultiplier)
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)
}

func TestFeedStartStop(t *testing.T) {
	f, stream, _ := newTestFeed(t)
	ctx := context.Background()

	require.NoError(t, f.Start(ctx))
	require.NoError(t, f.Start(ctx)) // idempotent

	stream.ticks <- &models.Tick{Timestamp: time.Now().UTC(), Price: 85000.5, Volume: 1}
	require.Eventually(t, func() bool {
		return f.CurrentPrice(ctx) == 85000.5
	}, 2*time.Second, 10*time.Millisecond)

	f.Stop()
	f.Stop() // idempotent
	assert.False(t, f.IsConnected())
}

func TestStreamErrorKeepsHistory(t *testing.T) {
	f, stream, ms := newTestFeed(t)
	ctx := context.Background()

	require.NoError(t, f.Start(ctx))
	defer f.Stop()

	stream.ticks <- &models.Tick{Timestamp: time.Now().UTC(), Price: 85000, Volume: 1}
	require.Eventually(t, func() bool {
		return f.CurrentPrice(ctx) == 85000
	}, 2*time.Second, 10*time.Millisecond)

	// a transport error bounces the consume loop; accumulated history
	// survives the reopen
	stream.errs <- errors.New("read: connection reset")

	stream.ticks <- &models.Tick{Timestamp: time.Now().UTC().Add(time.Second), Price: 85010, Volume: 1}
	require.Eventually(t, func() bool {
		return f.CurrentPrice(ctx) == 85010
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, listLen(t, ms, store.KeyMovementHistory))
}

func TestCurrentPriceEmptyStore(t *testing.T) {
	f, _, _ := newTestFeed(t)
	assert.Equal(t, 0.0, f.CurrentPrice(context.Background()))
}

func TestDrainLatestKeepsNewest(t *testing.T) {
	ch := make(chan *models.Tick, 3)
	ch <- &models.Tick{Price: 2}
	ch <- &models.Tick{Price: 3}

	got := drainLatest(ch, &models.Tick{Price: 1})
	assert.Equal(t, 3.0, got.Price)
}
