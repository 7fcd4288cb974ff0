package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/config"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	ws "github.com/TimPHC/Prediction-Market-Data-Check/internal/handlers/websocket"
	redisrepo "github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/cache"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/queue"
	chrepo "github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/storage"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/venue"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config *config.Config
	log    *slog.Logger

	Source    repository.RecordSource
	Snapshots repository.MarketSnapshotProvider
	Store     *chrepo.JSONFileStore
	Runner    *VolumeRunner

	Cache         *redisrepo.RedisRepository
	Events        *chrepo.ClickHouseRepository
	KafkaProducer *queue.KafkaProducer
	KafkaConsumer *queue.KafkaConsumer

	// report server only
	Reader         *LatestReportReader
	Broadcaster    *ws.WebSocketBroadcaster
	EventProcessor Processor
}

// venueSetup is what a venue contributes to a run
type venueSetup struct {
	source    repository.RecordSource
	snapshots repository.MarketSnapshotProvider
	tag       model.SourceTag
	contracts model.ContractSet
	asset     model.SettlementAsset
}

func newVenue(cfg *config.Config) (venueSetup, error) {
	fills := venue.ClientOptions{BaseURL: cfg.VenueAPIBase, APIKey: cfg.VenueAPIKey, Timeout: cfg.HTTPTimeout}
	markets := venue.ClientOptions{BaseURL: cfg.VenueMarketsAPIBase, APIKey: cfg.VenueAPIKey, Timeout: cfg.HTTPTimeout}

	var v venueSetup
	switch cfg.Venue {
	case config.VenueKalshi:
		k := venue.NewKalshi(venue.KalshiOptions{Trades: fills, Markets: markets, PageLimit: cfg.PageLimit})
		v = venueSetup{source: k, snapshots: k, tag: model.SourceReconciled, contracts: venue.KalshiContracts(), asset: venue.KalshiSettlementAsset}
	case config.VenuePolymarket:
		p := venue.NewPolymarket(venue.PolymarketOptions{Subgraph: fills, Gamma: markets, PageLimit: cfg.PageLimit})
		v = venueSetup{source: p, snapshots: p, tag: model.SourceReconciled, contracts: venue.PolymarketContracts(), asset: venue.PolymarketSettlementAsset}
	case config.VenueSynthetic:
		s := venue.NewSynthetic(time.Now().UTC(), cfg.LookbackDays, time.Now().UnixNano())
		v = venueSetup{source: s, tag: model.SourceSynthetic, contracts: venue.SyntheticContracts(), asset: venue.SyntheticSettlementAsset}
	default:
		return v, fmt.Errorf("%w: unknown VENUE %q", config.ErrInvalidConfig, cfg.Venue)
	}
	if cfg.VenueMarketsAPIBase == "" {
		v.snapshots = nil
	}

	if len(cfg.KnownExchangeContracts) > 0 {
		v.contracts = model.NewContractSet(cfg.KnownExchangeContracts...)
	}
	if cfg.SettlementAssetID != "" {
		v.asset.ID = cfg.SettlementAssetID
	}
	if cfg.SettlementDecimals >= 0 {
		v.asset.Decimals = int32(cfg.SettlementDecimals)
	}

	return v, nil
}

// NewApp wires the batch job: venue source, report store, optional sinks and the runner
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, log: log}

	v, err := newVenue(cfg)
	if err != nil {
		return nil, err
	}
	app.Source = v.source
	app.Snapshots = v.snapshots
	app.Store = chrepo.NewJSONFileStore(cfg.OutputPath)
	log.Info("venue configured",
		slog.String("venue", v.source.Name()),
		slog.String("source_tag", string(v.tag)),
		slog.String("settlement_asset", v.asset.ID),
		slog.String("output", cfg.OutputPath),
	)

	opts := []RunnerOption{}
	if v.snapshots != nil {
		opts = append(opts, WithSnapshotProvider(v.snapshots))
	}

	app.connectCache(ctx)
	if app.Cache != nil {
		opts = append(opts, WithReportCache(app.Cache))
	}

	app.connectClickHouse()
	if app.Events != nil {
		opts = append(opts, WithEventPersistence(app.Events))
	}

	if len(cfg.KafkaBrokers) > 0 {
		app.KafkaProducer = queue.NewKafkaProducer(app.kafkaConfig())
		opts = append(opts, WithPublisher(app.KafkaProducer))
		log.Info("kafka producer initialized", slog.String("topic", cfg.KafkaTopic))
	}

	app.Runner = NewVolumeRunner(log, RunnerConfig{
		SourceTag:     v.tag,
		Contracts:     v.contracts,
		Asset:         v.asset,
		LookbackDays:  cfg.LookbackDays,
		WeeklyRecords: cfg.WeeklyRecords,
		FeeRate:       cfg.FeeRate,
		PageLimit:     cfg.PageLimit,
		MaxPages:      cfg.MaxPages,
		MaxRetries:    cfg.FetchMaxRetries,
		RetryBackoff:  cfg.FetchRetryBackoff,
	}, v.source, app.Store, opts...)

	return app, nil
}

// NewServerApp wires the read side: report reader, websocket broadcaster and
// the Kafka consumer that keeps both fresh
func NewServerApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, log: log}

	app.Store = chrepo.NewJSONFileStore(cfg.OutputPath)
	app.Broadcaster = ws.NewWebSocketBroadcaster(log)

	app.connectCache(ctx)
	app.connectClickHouse()

	// avoid a typed nil inside the interface
	var reportCache repository.ReportCache
	if app.Cache != nil {
		reportCache = app.Cache
	}
	app.Reader = NewLatestReportReader(log, cfg.Venue, reportCache, app.Store)

	if len(cfg.KafkaBrokers) > 0 {
		app.KafkaConsumer = queue.NewKafkaConsumer(app.kafkaConfig(), log)
		app.EventProcessor = NewReportProcessor(log, app.KafkaConsumer, reportCache, app.Broadcaster)
		log.Info("kafka consumer initialized", slog.String("topic", cfg.KafkaTopic), slog.String("group", cfg.KafkaConsumerGroup))
	} else {
		log.Info("kafka not configured, websocket clients get no pushed updates")
	}

	return app, nil
}

func (a *AppContext) kafkaConfig() queue.KafkaConfig {
	return queue.KafkaConfig{
		Brokers:       a.Config.KafkaBrokers,
		Topic:         a.Config.KafkaTopic,
		ConsumerGroup: a.Config.KafkaConsumerGroup,
		BatchSize:     a.Config.KafkaBatchSize,
		BatchTimeout:  a.Config.KafkaBatchTimeout,
	}
}

// connectCache leaves Cache nil when Redis is not configured or unreachable
func (a *AppContext) connectCache(ctx context.Context) {
	if a.Config.RedisAddr == "" {
		return
	}
	repo := redisrepo.NewRedisRepository(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		a.log.Warn("redis unreachable, continuing without cache", slog.String("addr", a.Config.RedisAddr), sl.Err(err))
		_ = repo.Close()
		return
	}
	a.Cache = repo
	a.log.Info("redis cache initialized")
}

// connectClickHouse leaves Events nil when ClickHouse is not configured or unreachable
func (a *AppContext) connectClickHouse() {
	if a.Config.ClickhouseAddr == "" {
		return
	}
	repo, err := chrepo.NewClickHouseRepository(chrepo.ClickHouseConfig{
		Addr:     a.Config.ClickhouseAddr,
		Username: a.Config.ClickhouseUsername,
		Password: a.Config.ClickhousePassword,
		Timeout:  a.Config.ClickhouseTimeout,
	})
	if err != nil {
		a.log.Warn("clickhouse unavailable, continuing without audit storage", sl.Err(err))
		return
	}
	a.Events = repo
	a.log.Info("clickhouse storage initialized")
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup() {
	if a.KafkaConsumer != nil {
		if err := a.KafkaConsumer.Close(); err != nil {
			a.log.Warn("error closing kafka consumer", sl.Err(err))
		}
	}
	if a.KafkaProducer != nil {
		if err := a.KafkaProducer.Close(); err != nil {
			a.log.Warn("error closing kafka producer", sl.Err(err))
		}
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.log.Warn("error closing clickhouse", sl.Err(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Warn("error closing redis", sl.Err(err))
		}
	}

	a.log.Debug("all resources cleaned up")
}
