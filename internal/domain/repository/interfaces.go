package repository

import (
	"context"

	"TrapFlow/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TrapPublisher fans registered trap events out to a downstream notifier. The
// core never depends on delivery succeeding.
type TrapPublisher interface {
	Publish(ctx context.Context, e *models.TrapEvent) error
	Close() error
}

type Metrics interface {
	RecordTick()
	RecordError(kind string)
	RecordLastPrice(price float64)
	RecordTrapEvent(kind string)
	RecordHFMode(active bool, multiplier float64)
	RecordLatency(op string, seconds float64)
}
