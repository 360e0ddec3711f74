package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis backend settings.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisConfig)

// WithAddr sets host and port.
func WithAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
		c.Port = port
	}
}

// WithCredentials sets password and database index.
func WithCredentials(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithPrefix sets the key namespace prefix.
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// WithPool sets connection pool sizing.
func WithPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = size
		c.MinIdleConns = minIdle
		c.PoolTimeout = timeout
	}
}

// RedisStore implements Store backed by Redis. It is a drop-in replacement
// for MemoryStore; transient errors surface to the caller, which logs and
// retries once per the bus contract.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 5,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

// Client returns the underlying redis client.
func (rs *RedisStore) Client() *redis.Client { return rs.client }

func (rs *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := rs.client.Get(ctx, rs.wrapKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (rs *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := rs.client.Set(ctx, rs.wrapKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := rs.client.LPush(ctx, rs.wrapKey(key), args...).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := rs.client.LTrim(ctx, rs.wrapKey(key), start, stop).Err(); err != nil {
		return fmt.Errorf("redis ltrim %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	out, err := rs.client.LRange(ctx, rs.wrapKey(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	return out, nil
}

func (rs *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := rs.client.ZAdd(ctx, rs.wrapKey(key), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("redis zadd %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := rs.client.ZCard(ctx, rs.wrapKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard %s: %w", key, err)
	}
	return n, nil
}

func (rs *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	out, err := rs.client.ZRangeByScore(ctx, rs.wrapKey(key), &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore %s: %w", key, err)
	}
	return out, nil
}

func (rs *RedisStore) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	if err := rs.client.ZRemRangeByRank(ctx, rs.wrapKey(key), start, stop).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyrank %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (rs *RedisStore) Close() error { return rs.client.Close() }

func (rs *RedisStore) wrapKey(key string) string {
	if rs.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", rs.prefix, key)
}

func formatScore(f float64) string {
	return fmt.Sprintf("%f", f)
}
