package di

import (
	"context"
	"fmt"
	"time"

	"CandleSync/internal/domain/models"
	"CandleSync/internal/domain/repository"
	"CandleSync/internal/handler/api"
	internalrepo "CandleSync/internal/repository"
	"CandleSync/internal/service/binance"
	"CandleSync/internal/service/huobi"
	"CandleSync/internal/service/ratelimit"
	"CandleSync/internal/usecase"
	"CandleSync/pkg/cache"
	pkgch "CandleSync/pkg/clickhouse"
	"CandleSync/pkg/config"
	xhttp "CandleSync/pkg/http"
	pkgkafka "CandleSync/pkg/kafka"
	applogger "CandleSync/pkg/logger"
	"CandleSync/pkg/metrics"
	pkgmongo "CandleSync/pkg/mongo"
	"CandleSync/pkg/scheduler"
	"CandleSync/pkg/server"
)

const bootstrapTimeout = 30 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
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
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With the collector enabled and
// Kafka configured, repeated warnings and errors are shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))

	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.MaxItems,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSeries parses the configured symbol table.
func ProvideSeries(cfg *config.Config) (models.SeriesConfig, error) {
	series, err := models.ParseSeriesConfig(cfg.Sync.Series)
	if err != nil {
		return nil, fmt.Errorf("sync.series: %w", err)
	}
	return series, nil
}

// ProvideQuoteSource creates the exchange client selected by source.type.
func ProvideQuoteSource(cfg *config.Config) (repository.QuoteSource, error) {
	switch cfg.Source.Type {
	case "binance":
		b := cfg.Source.Binance
		limiter := ratelimit.New(b.Burst, float64(b.RateLimit))
		return binance.New(binance.Config{
			APIKey:    b.APIKey,
			SecretKey: b.SecretKey,
			BaseURL:   b.BaseURL,
			Timeout:   b.Timeout,
		}, limiter), nil
	case "huobi":
		h := cfg.Source.Huobi
		limiter := ratelimit.New(h.Burst, float64(h.RateLimit))
		src, err := huobi.New(h.BaseURL, h.Timeout, limiter)
		if err != nil {
			return nil, fmt.Errorf("huobi client: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown quote source %q", cfg.Source.Type)
	}
}

// ProvideCandleStore connects the store selected by store.type and bootstraps
// its schema.
func ProvideCandleStore(cfg *config.Config, l *applogger.Logger) (repository.CandleStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	switch cfg.Store.Type {
	case "clickhouse":
		return provideClickHouseStore(ctx, cfg, l)
	case "mongo":
		return provideMongoStore(ctx, cfg, l)
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store.Type)
	}
}

func provideMongoStore(ctx context.Context, cfg *config.Config, l *applogger.Logger) (repository.CandleStore, func(), error) {
	client, err := pkgmongo.NewClient(ctx,
		pkgmongo.WithURI(cfg.Mongo.URI),
		pkgmongo.WithDatabase(cfg.Mongo.Database),
		pkgmongo.WithTLS(cfg.Mongo.UseSSL),
		pkgmongo.WithConnectTimeout(cfg.Mongo.ConnectTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("mongo close", applogger.Error(err))
		}
	}

	store := internalrepo.NewMongoCandleStore(client.Collection(cfg.Mongo.Collection))
	if cfg.Mongo.CreateIndexes {
		if err := store.EnsureIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
	}
	l.Info("mongo store ready", applogger.String("target", store.Target()), applogger.Bool("tls", cfg.Mongo.UseSSL))
	return store, cleanup, nil
}

func provideClickHouseStore(ctx context.Context, cfg *config.Config, l *applogger.Logger) (repository.CandleStore, func(), error) {
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}

	table := ch.Database + "." + ch.Table
	if err := client.InitSchema(ctx,
		"CREATE DATABASE IF NOT EXISTS "+ch.Database,
		internalrepo.CandleTableDDL(table),
	); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	store := internalrepo.NewClickHouseCandleStore(client.DB(), table)
	store.SetLogger(l)
	l.Info("clickhouse store ready", applogger.String("target", store.Target()))
	return store, cleanup, nil
}

// ProvideCache returns the Redis store when enabled, otherwise an in-process
// one. The in-process lock only serializes runs inside this replica.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Store, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(context.Background(),
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache ready", applogger.String("addr", cfg.Redis.Addr))
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideReportPublisher publishes run reports to Kafka, or drops them when
// Kafka is disabled.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return repository.NoopPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSynchronizer creates the synchronization core.
func ProvideSynchronizer(
	cfg *config.Config,
	store repository.CandleStore,
	source repository.QuoteSource,
	m repository.Metrics,
) *usecase.Synchronizer {
	opts := usecase.SyncOptions{
		Parallelism: cfg.Sync.Parallelism,
		MaxRetry:    cfg.Sync.MaxRetry,
		AsyncInsert: cfg.Sync.AsyncInsert,
	}
	if t, ok := store.(interface{ Target() string }); ok {
		opts.Target = t.Target()
	}
	return usecase.NewSynchronizer(store, source, opts, m)
}

// ProvideSyncJob wraps the synchronizer with locking, logging and reporting.
func ProvideSyncJob(
	cfg *config.Config,
	sync *usecase.Synchronizer,
	series models.SeriesConfig,
	store cache.Store,
	pub repository.ReportPublisher,
	l *applogger.Logger,
) *usecase.SyncJob {
	return usecase.NewSyncJob(sync, series, store, pub, l.With(applogger.String("component", "sync")), cfg.Sync.LockTTL)
}

// ProvideScheduler creates the cron scheduler.
func ProvideScheduler(l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(l.With(applogger.String("component", "scheduler")))
}

// ProvideHTTPServer creates the admin API server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, job *usecase.SyncJob, store repository.CandleStore) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(api.NewSyncEchoHandler(l, job, store),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	job *usecase.SyncJob,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, sched, job, srv)
}
