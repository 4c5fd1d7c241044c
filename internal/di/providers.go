package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"NiftyPulse/internal/domain/repository"
	"NiftyPulse/internal/handler/api"
	mid "NiftyPulse/internal/middleware"
	"NiftyPulse/internal/pipeline"
	internalrepo "NiftyPulse/internal/repository"
	icache "NiftyPulse/internal/service/cache"
	"NiftyPulse/internal/service/kite"
	"NiftyPulse/internal/service/ratelimit"
	"NiftyPulse/internal/service/symbols"
	"NiftyPulse/internal/service/upstox"
	"NiftyPulse/internal/services/oscillator"
	"NiftyPulse/internal/services/regime"
	"NiftyPulse/internal/services/sentiment"
	"NiftyPulse/internal/services/structure"
	"NiftyPulse/internal/usecase"
	pkgcache "NiftyPulse/pkg/cache"
	pkgch "NiftyPulse/pkg/clickhouse"
	"NiftyPulse/pkg/config"
	xhttp "NiftyPulse/pkg/http"
	pkgkafka "NiftyPulse/pkg/kafka"
	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/metrics"
	"NiftyPulse/pkg/queue"
	"NiftyPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func instruments(cfg *config.Config) []symbols.Instrument {
	out := make([]symbols.Instrument, 0, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		out = append(out, symbols.Instrument{Ticker: in.Ticker, UpstoxKey: in.UpstoxKey, KiteToken: in.KiteToken})
	}
	return out
}

// ProvideResolver indexes instruments by the feed provider's keys.
func ProvideResolver(cfg *config.Config) (*symbols.Resolver, error) {
	return symbols.NewResolver(cfg.Feed.Provider, instruments(cfg))
}

// ProvideUpstoxClient creates the Upstox REST client. Option chains always
// come from it, whichever feed provider is selected.
func ProvideUpstoxClient(cfg *config.Config) *upstox.Client {
	expiries := make(map[string]string)
	for _, in := range cfg.Instruments {
		if in.Expiry != "" {
			expiries[in.UpstoxKey] = in.Expiry
		}
	}
	return upstox.NewClient(upstox.Config{
		BaseURL:     cfg.Upstox.BaseURL,
		AccessToken: cfg.Upstox.AccessToken,
		Timeout:     cfg.Upstox.Timeout,
		RPS:         cfg.Upstox.RPS,
		Burst:       cfg.Upstox.Burst,
		Expiries:    expiries,
	})
}

// ProvideIntradaySource picks the bar source matching the feed provider.
func ProvideIntradaySource(cfg *config.Config, up *upstox.Client) repository.IntradaySource {
	if cfg.Feed.Provider == "kite" {
		return kite.NewHistory(kite.NewHistoryAPI(cfg.Kite.APIKey, cfg.Kite.AccessToken))
	}
	return up
}

// ProvideRedisCache connects to Redis. Returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := pkgcache.NewRedisCache(ctx, pkgcache.RedisConfig{
		Addr:         net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: 2,
		Prefix:       cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideChainCache shares chain fetches through Redis when available and
// an in-process TTL cache otherwise.
func ProvideChainCache(cfg *config.Config, rc *pkgcache.RedisCache) icache.BytesCache {
	if rc != nil {
		return icache.NewRedisCacheFromClient(rc.Client(), cfg.Redis.Prefix+":chain")
	}
	return icache.NewTTLCache()
}

// ProvideChainSource builds the option chain source keyed by feed keys.
func ProvideChainSource(cfg *config.Config, up *upstox.Client, resolver *symbols.Resolver,
	cache icache.BytesCache, logger *applogger.Logger) (repository.OptionChainSource, error) {
	var chains repository.OptionChainSource = up
	if cfg.Cache.ChainTTL > 0 {
		chains = icache.NewCachedChainSource(up, cache, cfg.Cache.ChainTTL, logger)
	}
	if cfg.Feed.Provider == "upstox" {
		return chains, nil
	}
	upResolver, err := symbols.NewResolver("upstox", instruments(cfg))
	if err != nil {
		return nil, err
	}
	return symbols.NewRekeyedChains(chains, resolver, upResolver), nil
}

// ProvideSentimentSource derives sentiment from chains or calls a remote service.
func ProvideSentimentSource(cfg *config.Config, chains repository.OptionChainSource, resolver *symbols.Resolver) repository.SentimentSource {
	if cfg.Sentiment.Provider == "http" {
		return sentiment.NewRemoteSource(cfg.Sentiment.BaseURL, cfg.Sentiment.Timeout)
	}
	return sentiment.NewAnalyzer(chains, resolver)
}

func ProvideOscillator(cfg *config.Config) *oscillator.Engine {
	return oscillator.New(
		oscillator.WithWindow(cfg.Oscillator.Window),
		oscillator.WithEpsilon(cfg.Oscillator.Epsilon),
	)
}

func ProvideStructureDetector(cfg *config.Config) *structure.Detector {
	return structure.NewDetector(cfg.Structure.Lookback)
}

func ProvideRegimeTracker() *regime.Tracker { return regime.NewTracker() }

func ProvideSnapshotStore() *pipeline.SnapshotStore { return pipeline.NewSnapshotStore() }

// ProvideRegimeStore mirrors regimes to Redis. Returns nil without redis.
func ProvideRegimeStore(cfg *config.Config, rc *pkgcache.RedisCache) repository.RegimeStore {
	if rc == nil {
		return nil
	}
	return internalrepo.NewCacheRegimeStore(rc, cfg.Cache.RegimeTTL)
}

// storeKind is the database behind reads, the kafka sink and backfill.
func storeKind(cfg *config.Config) string {
	switch cfg.Storage.Backend {
	case "clickhouse", "postgres":
		return cfg.Storage.Backend
	default:
		return cfg.Storage.ReadFrom
	}
}

// ProvideClickHouseClient creates a ClickHouse client and the bars table.
// Returns nil when the bar store is postgres.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if storeKind(cfg) != "clickhouse" {
		return nil, nil
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.BarsSchema(cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore returns the ClickHouse or Postgres bar store.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, logger *applogger.Logger) (repository.BarStore, error) {
	if storeKind(cfg) == "clickhouse" {
		return internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Table, logger), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pg, err := internalrepo.NewPGBarStore(ctx, internalrepo.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		PoolMax:  cfg.Postgres.PoolMax,
	})
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when kafka is disabled.
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

// ProvideKafkaPublisher wraps the producer with topic routing and ships
// aggregated error logs to the logs topic. Returns nil without a producer.
func ProvideKafkaPublisher(cfg *config.Config, producer *pkgkafka.Producer, logger *applogger.Logger) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaPublisher(producer, internalrepo.KafkaTopics{
		Bars:    cfg.Kafka.Topics.Bars,
		Intents: cfg.Kafka.Topics.Intents,
		Events:  cfg.Kafka.Topics.Events,
		Logs:    cfg.Kafka.Topics.Logs,
	})
	logger.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.Topics.Logs,
		Publisher:      pub,
		MinLevel:       "warn",
		Service:        "niftypulse-" + cfg.Mode,
	})
	return pub
}

// publisher avoids a typed nil inside the Publisher interface.
func publisher(p *internalrepo.KafkaPublisher) repository.Publisher {
	if p == nil {
		return nil
	}
	return p
}

// ProvideJournal opens the SQLite trade intent journal.
func ProvideJournal(cfg *config.Config) (*internalrepo.SQLiteJournal, error) {
	return internalrepo.NewSQLiteJournal(cfg.Journal.Path)
}

func ProvideIntentDispatcher(journal *internalrepo.SQLiteJournal, pub *internalrepo.KafkaPublisher,
	m repository.Metrics, logger *applogger.Logger) *usecase.IntentDispatcher {
	return usecase.NewIntentDispatcher(journal, publisher(pub), m, logger.With(applogger.String("component", "intents")))
}

// ProvidePipeline registers handlers in dispatch order: chain snapshot,
// regime, signal, then the event topic when kafka is on.
func ProvidePipeline(cfg *config.Config, logger *applogger.Logger, m repository.Metrics,
	snaps *pipeline.SnapshotStore, tracker *regime.Tracker, regimes repository.RegimeStore,
	dispatcher *usecase.IntentDispatcher, pub *internalrepo.KafkaPublisher) *pipeline.Pipeline {
	handlers := []pipeline.Handler{
		snaps,
		pipeline.NewRegimeHandler(tracker, regimes, m, logger),
		pipeline.NewSignalHandler(dispatcher, m, logger,
			pipeline.WithEdgeTrigger(cfg.EdgeTriggered()),
			pipeline.WithCooldown(cfg.Signal.Cooldown),
			pipeline.WithTickSize(cfg.Signal.TickSize),
		),
	}
	if pub != nil {
		handlers = append(handlers, pipeline.NewEventPublisher(pub))
	}
	return pipeline.New(logger, m, handlers...)
}

// ProvidePersistPipeline buffers closed bars toward the storage backend.
// Returns nil for backend none.
func ProvidePersistPipeline(cfg *config.Config, pub *internalrepo.KafkaPublisher, store repository.BarStore,
	m repository.Metrics, logger *applogger.Logger) *mid.PersistPipeline {
	if cfg.Storage.Backend == "none" {
		return nil
	}
	rec := usecase.NewBarRecorder(publisher(pub), store, m, cfg.Storage.Backend,
		cfg.Ingestion.Venue, repository.NormalizeInterval(cfg.Ingestion.Interval))
	return mid.NewPersistPipeline(rec, m, logger.With(applogger.String("component", "persist")),
		mid.WithBufferSize(cfg.Storage.BufferSize),
		mid.WithMaxAttempts(cfg.Storage.MaxAttempts),
	)
}

// ProvideEventBuilder wires the candle gate and enrichment sources. The
// poll engine suppresses the first observation after start; the live engine
// does not.
func ProvideEventBuilder(cfg *config.Config, resolver *symbols.Resolver, intraday repository.IntradaySource,
	chains repository.OptionChainSource, sent repository.SentimentSource, osc *oscillator.Engine,
	det *structure.Detector, persist *mid.PersistPipeline, m repository.Metrics, logger *applogger.Logger) *usecase.EventBuilder {
	var sink usecase.BarSink
	if persist != nil {
		sink = persist
	}
	gate := usecase.NewGate(
		usecase.WithSuppressFirst(cfg.Mode == "poll"),
		usecase.WithRejectMetrics(m),
	)
	return usecase.NewEventBuilder(usecase.BuilderDeps{
		Resolver:  resolver,
		Intraday:  intraday,
		Chains:    chains,
		Sentiment: sent,
		Osc:       osc,
		Structure: det,
		Sink:      sink,
		Metrics:   m,
		Logger:    logger,
	}, gate, repository.NormalizeInterval(cfg.Ingestion.Interval))
}

func ingestOptions(cfg *config.Config) usecase.IngestOptions {
	return usecase.IngestOptions{
		PollInterval: cfg.Ingestion.PollInterval,
		RunDuration:  cfg.Ingestion.RunDuration,
		CycleTimeout: cfg.Ingestion.CycleTimeout,
		QueueSize:    cfg.Ingestion.QueueSize,
		Retry: usecase.RetryPolicy{
			MaxAttempts: cfg.Ingestion.Retry.MaxAttempts,
			MinBackoff:  cfg.Ingestion.Retry.MinBackoff,
			MaxBackoff:  cfg.Ingestion.Retry.MaxBackoff,
		},
	}
}

// ProvideMarketFeed creates the websocket feed for the live engine.
func ProvideMarketFeed(cfg *config.Config, up *upstox.Client, m repository.Metrics, logger *applogger.Logger) repository.MarketFeed {
	l := logger.With(applogger.String("component", "feed"), applogger.String("provider", cfg.Feed.Provider))
	if cfg.Feed.Provider == "kite" {
		return kite.NewTicker(cfg.Kite.APIKey, cfg.Kite.AccessToken, l)
	}
	return upstox.NewFeed(up.FeedURL, cfg.Feed.Mode, cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval, m, l)
}

// ProvideIngestor selects the polling or live engine.
func ProvideIngestor(cfg *config.Config, resolver *symbols.Resolver, up *upstox.Client, builder *usecase.EventBuilder,
	pipe *pipeline.Pipeline, m repository.Metrics, logger *applogger.Logger) server.Ingestor {
	l := logger.With(applogger.String("component", "ingest"))
	if cfg.Mode == "live" {
		feed := ProvideMarketFeed(cfg, up, m, logger)
		return usecase.NewLiveIngestor(feed, resolver, builder, pipe, m, l, ingestOptions(cfg), nil)
	}
	return usecase.NewPollingIngestor(resolver, builder, pipe, m, l, ingestOptions(cfg))
}

// ProvideKafkaConsumer creates the bar sink consumer. Returns nil unless enabled.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, logger *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerLogger(logger.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TimingHook(func(topic string, d time.Duration, err error) {
		m.RecordLatency("consume:"+topic, d.Seconds())
		if err != nil {
			m.RecordError("consume:" + topic)
		}
	}))
	return consumer, nil
}

func ProvideKafkaBarsHandler(cfg *config.Config, store repository.BarStore, m repository.Metrics) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topics.Bars, store, m)
}

func ProvideBackfillUseCase(cfg *config.Config, resolver *symbols.Resolver, intraday repository.IntradaySource,
	store repository.BarStore, logger *applogger.Logger) *usecase.BackfillUseCase {
	return usecase.NewBackfillUseCase(resolver, intraday, store, cfg.Ingestion.Venue,
		repository.NormalizeInterval(cfg.Ingestion.Interval), logger.With(applogger.String("component", "backfill")))
}

// ProvideJobQueue runs backfill jobs over Redis. Returns nil without redis.
func ProvideJobQueue(cfg *config.Config, rc *pkgcache.RedisCache, logger *applogger.Logger, backfill *usecase.BackfillUseCase) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(rc.Client(), logger.With(applogger.String("component", "jobs")), queue.Config{
		Workers:    cfg.Backfill.Workers,
		RetryLimit: cfg.Backfill.RetryLimit,
		RetryDelay: cfg.Backfill.RetryDelay,
	}, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJob(usecase.NewBackfillJob(backfill))
	return q
}

// ProvideMarketHandler wires the read API with per-client rate limiting.
func ProvideMarketHandler(cfg *config.Config, logger *applogger.Logger, store repository.BarStore,
	journal *internalrepo.SQLiteJournal, tracker *regime.Tracker, osc *oscillator.Engine, det *structure.Detector,
	snaps *pipeline.SnapshotStore, regimes repository.RegimeStore, q *queue.RedisQueue, resolver *symbols.Resolver) *api.MarketEchoHandler {
	views := usecase.NewMarketViewUseCase(tracker, osc, det, snaps, store, regimes,
		repository.NormalizeInterval(cfg.Ingestion.Interval))
	var enq api.Enqueuer
	if q != nil {
		enq = q
	}
	limiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	return api.NewMarketEchoHandler(logger.With(applogger.String("component", "api")),
		usecase.NewCandlesUseCase(store), usecase.NewTradesUseCase(journal),
		views, enq, store, resolver, limiter.Middleware())
}

// ProvideHTTPServer creates the API server. Returns nil when disabled.
func ProvideHTTPServer(cfg *config.Config, logger *applogger.Logger, h *api.MarketEchoHandler) *xhttp.Server {
	if !cfg.ServerEnabled() {
		return nil
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithLogger(logger.With(applogger.String("component", "http"))),
	)
}

// ProvideApp assembles the lifecycle. Resources close in reverse of the
// order added here.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	ingestor server.Ingestor,
	persist *mid.PersistPipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	q *queue.RedisQueue,
	srv *xhttp.Server,
	rc *pkgcache.RedisCache,
	tracker *regime.Tracker,
	regimes repository.RegimeStore,
	resolver *symbols.Resolver,
	ch *pkgch.Client,
	store repository.BarStore,
	pub *internalrepo.KafkaPublisher,
	journal *internalrepo.SQLiteJournal,
) *server.App {
	app := server.New(logger, ingestor)
	app.SetPersist(persist)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	app.SetQueue(q)
	if srv != nil {
		app.SetHTTPServer(srv, cfg.Server.ShutdownTimeout)
	}
	if rc != nil {
		app.SetLock(rc, "engine:"+cfg.Mode, cfg.Redis.LockTTL)
	}
	app.SetRegimeRestore(tracker, regimes, resolver.Tickers())

	if rc != nil {
		app.AddCloser("redis", rc)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	app.AddCloser("journal", journal)
	if pub != nil {
		app.AddCloser("kafka publisher", pub)
	}
	app.AddCloser("log collector", server.CloserFunc(func() error { logger.RemoveCollector(); return nil }))
	app.AddCloser("bar store", store)
	return app
}

// BackfillTool is the one-shot backfill command's dependency set.
type BackfillTool struct {
	UseCase *usecase.BackfillUseCase
	Logger  *applogger.Logger
	store   repository.BarStore
	ch      *pkgch.Client
}

// Close releases the store and the ClickHouse connection.
func (b *BackfillTool) Close() error {
	err := b.store.Close()
	if b.ch != nil {
		if cerr := b.ch.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func ProvideBackfillTool(uc *usecase.BackfillUseCase, logger *applogger.Logger, store repository.BarStore, ch *pkgch.Client) *BackfillTool {
	return &BackfillTool{UseCase: uc, Logger: logger, store: store, ch: ch}
}
