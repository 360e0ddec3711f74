package di

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"TrapFlow/internal/domain/repository"
	internalrepo "TrapFlow/internal/repository"
	"TrapFlow/internal/service/binance"
	"TrapFlow/internal/services/analytics"
	"TrapFlow/internal/usecase"
	"TrapFlow/pkg/config"
	pkgkafka "TrapFlow/pkg/kafka"
	"TrapFlow/pkg/logger"
	"TrapFlow/pkg/metrics"
	"TrapFlow/pkg/server"
	"TrapFlow/pkg/store"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore selects the store backend from the configured URL.
func ProvideStore(cfg *config.Config) (store.Store, error) {
	u := cfg.Store.URL
	switch {
	case u == "memory://" || u == "memory":
		return store.NewMemoryStore(), nil
	case strings.HasPrefix(u, "redis://"):
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("store url: %w", err)
		}
		host := parsed.Hostname()
		port := 6379
		if p := parsed.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("store url port: %w", err)
			}
		}
		db := 0
		if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
			db, err = strconv.Atoi(path)
			if err != nil {
				return nil, fmt.Errorf("store url db: %w", err)
			}
		}
		password, _ := parsed.User.Password()
		return store.NewRedisStore(
			store.WithAddr(host, port),
			store.WithCredentials(password, db),
			store.WithPrefix(cfg.Store.Prefix),
		)
	default:
		return nil, fmt.Errorf("unsupported store url: %s", u)
	}
}

// ProvideTradeStream creates the trade WebSocket stream.
func ProvideTradeStream(cfg *config.Config, log *logger.Logger, m repository.Metrics) repository.MarketStream {
	return binance.New(
		cfg.Stream.URL,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		log,
		m,
	)
}

// ProvideTrapPublisher creates the optional Kafka trap-event publisher.
// Returns nil when Kafka fanout is disabled.
func ProvideTrapPublisher(cfg *config.Config) (repository.TrapPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaTrapPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideWindowedStats creates the rolling stats tracker.
func ProvideWindowedStats(st store.Store, log *logger.Logger) *analytics.WindowedStats {
	return analytics.NewWindowedStats(st, log)
}

// ProvideFibAnalyzer creates the Fibonacci analyzer.
func ProvideFibAnalyzer(cfg *config.Config, st store.Store, stats *analytics.WindowedStats, log *logger.Logger) *analytics.FibAnalyzer {
	return analytics.NewFibAnalyzer(st, stats, log, cfg.Detector.ConfluenceTolerance)
}

// ProvideHFDetector creates the high-frequency trap detector.
func ProvideHFDetector(
	cfg *config.Config,
	st store.Store,
	stats *analytics.WindowedStats,
	pub repository.TrapPublisher,
	m repository.Metrics,
	log *logger.Logger,
) *analytics.HFDetector {
	return analytics.NewHFDetector(st, stats, pub, m, log, cfg.Detector.EventLogSize, cfg.Detector.ActivationCooldown)
}

// ProvideTickPipeline creates the per-tick orchestrator.
func ProvideTickPipeline(
	cfg *config.Config,
	st store.Store,
	stats *analytics.WindowedStats,
	fib *analytics.FibAnalyzer,
	detector *analytics.HFDetector,
	m repository.Metrics,
) *usecase.TickPipeline {
	return usecase.NewTickPipeline(st, stats, fib, detector, m, cfg.Detector.ConfluenceInterval)
}

// ProvideFeed creates the tick feed.
func ProvideFeed(
	cfg *config.Config,
	stream repository.MarketStream,
	st store.Store,
	stats *analytics.WindowedStats,
	pipe *usecase.TickPipeline,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Feed {
	return usecase.NewFeed(stream, st, stats, pipe, m, log, cfg.Stream.StoreRetryDelay, cfg.Stream.StartupStoreWait)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	st store.Store,
	feed *usecase.Feed,
	pub repository.TrapPublisher,
) *server.App {
	return server.New(cfg, log, st, feed, pub)
}
