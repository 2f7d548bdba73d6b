package di

import (
	"context"
	"fmt"
	"time"

	"StockWatch/internal/domain/repository"
	"StockWatch/internal/handler/api"
	internalrepo "StockWatch/internal/repository"
	"StockWatch/internal/service/runlock"
	"StockWatch/internal/service/yahoo"
	"StockWatch/internal/usecase"
	"StockWatch/pkg/cache"
	pkgch "StockWatch/pkg/clickhouse"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
	pkgkafka "StockWatch/pkg/kafka"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/metrics"
	"StockWatch/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Log.Output
	if output == "" {
		output = "stdout"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: output})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRunHistory creates the ClickHouse run history and its schema.
func ProvideRunHistory(client *pkgch.Client) (repository.RunHistory, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return internalrepo.NewClickHouseHistory(ctx, client)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher creates the alert/summary event publisher. When
// Kafka is live, error-level logs are also aggregated and shipped to the
// event stream in deduplicated batches.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config, log *logger.Logger) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NewNoopEvents()
	}
	events := internalrepo.NewKafkaEvents(producer, cfg.Kafka.Topic)
	log.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.Topic + ".errors",
		Publisher:      events,
	})
	return events
}

// ProvideRecordStore creates the Notion-backed watchlist store.
func ProvideRecordStore(cfg *config.Config, log *logger.Logger) repository.RecordStore {
	return internalrepo.NewNotionStore(
		cfg.Notion.BaseURL,
		cfg.Notion.Token,
		cfg.Notion.DatabaseID,
		cfg.Notion.Version,
		cfg.Notion.Timeout,
		log,
	)
}

// ProvideMarketData creates the daily-quote provider client.
func ProvideMarketData(cfg *config.Config) repository.MarketData {
	return yahoo.New(cfg.MarketData.BaseURL, cfg.MarketData.Timeout, cfg.MarketData.MaxRPS)
}

// ProvideNotifier creates the Discord notifier, or a noop when disabled.
func ProvideNotifier(cfg *config.Config, log *logger.Logger) repository.Notifier {
	if !cfg.Discord.Enabled {
		return internalrepo.NewNoopNotifier()
	}
	return internalrepo.NewDiscordNotifier(cfg.Discord.WebhookURL, cfg.Discord.Timeout, log)
}

// ProvideRunLock creates the Redis run lock, or a noop when disabled.
func ProvideRunLock(cfg *config.Config) repository.RunLock {
	if !cfg.Redis.Enabled {
		return runlock.NewNoop()
	}
	return runlock.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockKey, cfg.Redis.LockTTL)
}

// ProvideQuoteCache creates the per-run quote cache.
func ProvideQuoteCache() cache.Service {
	return cache.NewMemoryCache()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePruner creates the execution-history pruner.
func ProvidePruner(history repository.RunHistory, cfg *config.Config, log *logger.Logger) *usecase.Pruner {
	return usecase.NewPruner(history, cfg.Watcher.Keep, log)
}

// ProvideWatchRunner creates the batch engine.
func ProvideWatchRunner(
	cfg *config.Config,
	store repository.RecordStore,
	market repository.MarketData,
	notify repository.Notifier,
	events repository.EventPublisher,
	history repository.RunHistory,
	lock repository.RunLock,
	pruner *usecase.Pruner,
	quotes cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.WatchRunner {
	return usecase.NewWatchRunner(
		usecase.WatchRunnerConfig{
			Job:         cfg.Watcher.Job,
			Workers:     cfg.Watcher.Workers,
			CallTimeout: cfg.Watcher.CallTimeout,
			QuoteTTL:    cfg.Watcher.QuoteTTL,
		},
		store, market, notify, events, history, lock, pruner, quotes, m, log,
	)
}

// ProvideHTTPHandler creates the admin API handler.
func ProvideHTTPHandler(runner *usecase.WatchRunner, store repository.RecordStore, log *logger.Logger) xhttp.Handler {
	return api.NewWatchHandler(runner, store, log)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	runner *usecase.WatchRunner,
	handler xhttp.Handler,
	events repository.EventPublisher,
	chClient *pkgch.Client,
	log *logger.Logger,
) *server.App {
	return server.New(cfg, runner, handler, events, chClient, log)
}
