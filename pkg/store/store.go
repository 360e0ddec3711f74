package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("store: key not found")
)

// Store is the process-wide key/value bus the pipeline components communicate
// through. Values are opaque strings; callers encode and decode. Each op is
// atomic per key; there is no cross-key atomicity.
//
// Single-writer-per-key is enforced by component ownership, not by the Store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	Ping(ctx context.Context) error
	Close() error
}
