package di

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/handler/api"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/cache"
	"StockPulse/internal/service/eastmoney"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/service/yahoo"
	"StockPulse/internal/services/indicators"
	"StockPulse/internal/services/narrative"
	"StockPulse/internal/services/scoring"
	"StockPulse/internal/usecase"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/server"

	"github.com/segmentio/kafka-go"
)

// memoryCacheEntries bounds the in-process raw cache.
const memoryCacheEntries = 2048

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRawCache returns nil when caching is disabled.
func ProvideRawCache(cfg *config.Config) cache.BytesCache {
	c := cfg.Providers.Cache
	if !c.Enabled {
		return nil
	}
	if c.Backend == "redis" {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "stockpulse:",
		})
	}
	return cache.NewTTLCache(memoryCacheEntries)
}

// ProvideProviders maps every market to its history source. Domestic markets use
// eastmoney, HK and US use yahoo.
func ProvideProviders(cfg *config.Config, raw cache.BytesCache, logger *applogger.Logger) domrepo.ProviderSet {
	em := eastmoney.NewClient(
		eastmoney.WithBaseURL(orDefault(cfg.Providers.Eastmoney.BaseURL, eastmoney.DefaultBaseURL)),
		eastmoney.WithTimeout(cfg.Providers.Eastmoney.Timeout),
		eastmoney.WithRateLimit(cfg.Providers.Eastmoney.RateLimit),
		eastmoney.WithRetries(cfg.Providers.Eastmoney.Retries),
		eastmoney.WithLogger(logger),
	)
	yh := yahoo.NewClient(
		yahoo.WithBaseURL(orDefault(cfg.Providers.Yahoo.BaseURL, yahoo.DefaultBaseURL)),
		yahoo.WithTimeout(cfg.Providers.Yahoo.Timeout),
		yahoo.WithRateLimit(cfg.Providers.Yahoo.RateLimit),
		yahoo.WithRetries(cfg.Providers.Yahoo.Retries),
		yahoo.WithLogger(logger),
	)

	var domestic, foreign domrepo.Provider = em, yh
	if raw != nil {
		domestic = internalrepo.NewCachedProvider(em, raw, cfg.Providers.Cache.TTL, logger)
		foreign = internalrepo.NewCachedProvider(yh, raw, cfg.Providers.Cache.TTL, logger)
	}
	return domrepo.ProviderSet{
		models.MarketA:   domestic,
		models.MarketETF: domestic,
		models.MarketLOF: domestic,
		models.MarketHK:  foreign,
		models.MarketUS:  foreign,
	}
}

func ProvideFetcher(providers domrepo.ProviderSet, m domrepo.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.Fetcher {
	return usecase.NewFetcher(providers, m, logger, cfg.Scheduler.LookbackDays)
}

func ProvideScheduler(f *usecase.Fetcher, m domrepo.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.Scheduler {
	return usecase.NewScheduler(f, cfg.Scheduler.MaxConcurrency, m, logger)
}

func ProvideAssembler(logger *applogger.Logger) *usecase.Assembler {
	return usecase.NewAssembler(logger)
}

func ProvideCalculator() service.IndicatorCalculator {
	return indicators.NewCalculator()
}

func ProvideScorer() service.Scorer {
	return scoring.NewScorer()
}

func ProvideNarrator(cfg *config.Config, logger *applogger.Logger) (service.Narrator, error) {
	n, err := narrative.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("narrator: %w", err)
	}
	return n, nil
}

func ProvideProber(logger *applogger.Logger) *narrative.Prober {
	return narrative.NewProber(logger)
}

// ProvideClickHouseClient returns nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config, logger *applogger.Logger) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx, pkgch.Config{
		Host:         ch.Host,
		Port:         ch.Port,
		Database:     ch.Database,
		User:         ch.User,
		Password:     ch.Password,
		HTTP:         ch.UseHTTP,
		AsyncInsert:  ch.AsyncInsert,
		WaitForAsync: ch.WaitForAsync,
		DialTimeout:  ch.DialTimeout,
		ReadTimeout:  ch.ReadTimeout,
		MaxExecTime:  ch.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.BarArchiveDDL(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	logger.Info("clickhouse ready", applogger.String("database", client.Database()))
	return client, nil
}

// ProvideBarArchive returns a nil interface when there is no ClickHouse client.
func ProvideBarArchive(client *pkgch.Client, logger *applogger.Logger) domrepo.BarArchive {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseBarArchive(client.DB(), client.Database(), logger)
}

// ProvideNoArchive is used by one-shot commands that never touch ClickHouse.
func ProvideNoArchive() domrepo.BarArchive { return nil }

func ProvideOrchestrator(
	f *usecase.Fetcher,
	s *usecase.Scheduler,
	a *usecase.Assembler,
	calc service.IndicatorCalculator,
	scorer service.Scorer,
	n service.Narrator,
	archive domrepo.BarArchive,
	m domrepo.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Orchestrator {
	opts := []usecase.OrchestratorOption{
		usecase.WithTopK(cfg.Scheduler.TopK),
		usecase.WithMetrics(m),
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	return usecase.NewOrchestrator(f, s, a, calc, scorer, n, logger, opts...)
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      k.Brokers,
		RequiredAcks: k.RequiredAcks,
		Compression:  k.Compression,
		MaxAttempts:  k.Producer.MaxAttempts,
		Linger:       k.Producer.Linger,
		BatchSize:    k.Producer.BatchSize,
		BatchBytes:   k.Producer.BatchBytes,
		WriteTimeout: k.Producer.WriteTimeout,
		ReadTimeout:  k.Producer.ReadTimeout,
		Async:        k.Producer.Async,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideFragmentPublisher returns a nil interface without a producer.
func ProvideFragmentPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.FragmentPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaFragmentPublisher(producer, cfg.Kafka.FragmentTopic)
}

// ProvideKafkaConsumer creates the scan request consumer, or nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, logger *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    c.GroupID,
		Workers:    c.Workers,
		BufferSize: c.BufferSize,
		RetryMax:   c.RetryMax,
		BackoffMin: c.BackoffMin,
		BackoffMax: c.BackoffMax,
		DLQTopic:   c.DLQTopic,
		MinBytes:   c.MinBytes,
		MaxBytes:   c.MaxBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.Chain(
		pkgkafka.TraceHook(),
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, km kafka.Message, err error) {
				logger.Warn("scan request failed",
					applogger.String("topic", topic),
					applogger.Int64("offset", km.Offset),
					applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
					applogger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

func ProvideScanRequestHandler(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	pub domrepo.FragmentPublisher,
	m domrepo.Metrics,
	logger *applogger.Logger,
) *usecase.ScanRequestHandler {
	return usecase.NewScanRequestHandler(cfg.Kafka.ScanRequestTopic, orch, pub, m, logger)
}

func ProvideScheduledScans(cfg *config.Config, orch *usecase.Orchestrator, pub domrepo.FragmentPublisher, logger *applogger.Logger) *usecase.ScheduledScans {
	return usecase.NewScheduledScans(orch, pub, cfg.ScanSchedule.Jobs, logger)
}

func ProvideAnalysisHandler(
	orch *usecase.Orchestrator,
	prober *narrative.Prober,
	archive domrepo.BarArchive,
	m domrepo.Metrics,
	logger *applogger.Logger,
) *api.AnalysisHandler {
	return api.NewAnalysisHandler(orch, prober, archive, m, logger)
}

// ProvideRateLimiter returns nil when per-client limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.AnalysisHandler,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	scanHandler *usecase.ScanRequestHandler,
	scans *usecase.ScheduledScans,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, logger, server.Components{
		HTTPHandler: handler,
		Limiter:     limiter,
		Consumer:    consumer,
		ScanHandler: scanHandler,
		Scans:       scans,
		Producer:    producer,
		ClickHouse:  chClient,
	})
}

// Toolkit is what one-shot CLI commands need.
type Toolkit struct {
	Orchestrator *usecase.Orchestrator
	Prober       *narrative.Prober
	Logger       *applogger.Logger
}

func ProvideToolkit(orch *usecase.Orchestrator, prober *narrative.Prober, logger *applogger.Logger) *Toolkit {
	return &Toolkit{Orchestrator: orch, Prober: prober, Logger: logger}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
