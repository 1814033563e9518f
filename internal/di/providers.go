package di

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	segkafka "github.com/segmentio/kafka-go"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/internal/domain/service"
	"SimEcon/internal/handler/api"
	internalrepo "SimEcon/internal/repository"
	"SimEcon/internal/service/feed"
	"SimEcon/internal/service/ratelimit"
	"SimEcon/internal/services/cycle"
	"SimEcon/internal/services/pricing"
	"SimEcon/internal/usecase"
	"SimEcon/pkg/cache"
	pkgch "SimEcon/pkg/clickhouse"
	"SimEcon/pkg/config"
	xhttp "SimEcon/pkg/http"
	pkgkafka "SimEcon/pkg/kafka"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/metrics"
	"SimEcon/pkg/persistence"
	"SimEcon/pkg/queue"
	"SimEcon/pkg/server"
)

// Persisted document names under data_dir.
const (
	docBalances     = "balances.json"
	docTransactions = "transactions.json"
	docCredit       = "credit_scores.json"
	docLoans        = "loans.json"
	docSavings      = "savings.json"
	docCycle        = "cycle.json"
	docTracker      = "economy_tracker.json"
	docOverdraft    = "overdraft.json"
	docTax          = "tax.json"
	docSimulation   = "simulation.json"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. Error logs are aggregated
// and shipped to the log topic when a producer exists.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	cc := &logger.CollectionConfig{Topic: cfg.Log.Topic}
	if producer != nil {
		cc.Publisher = producer
	}
	l.AddCollector(cc)
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects to Redis when enabled. The client is shared
// by the rate limiter and the quote cache.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideClickHouseClient connects when the archive or the clickhouse
// relay backend needs it.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Archive && cfg.Relay.Backend != usecase.RelayClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideTransactionArchive creates the ClickHouse archive and its schema.
func ProvideTransactionArchive(client *pkgch.Client, cfg *config.Config, l *logger.Logger) (repository.TransactionArchive, error) {
	if client == nil {
		return nil, nil
	}
	archive := internalrepo.NewClickHouseTransactionArchive(client, cfg.ClickHouse.Database+".tx_archive", l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvideTransactionPublisher creates the Kafka publisher repository.
func ProvideTransactionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TransactionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTransactionPublisher(producer, cfg.Kafka.Topic)
}

// ProvideLimiter picks the in-process or the Redis sliding window.
func ProvideLimiter(cfg *config.Config, client redis.UniversalClient, l *logger.Logger) (ratelimit.Limiter, error) {
	policies := map[string]ratelimit.Policy{
		models.RateClassTransfer: {Max: cfg.RateLimit.Transfer.Max, Window: cfg.RateLimit.Transfer.Window},
		models.RateClassCommand:  {Max: cfg.RateLimit.Command.Max, Window: cfg.RateLimit.Command.Window},
	}
	if cfg.RateLimit.Backend == "redis" {
		if client == nil {
			return nil, fmt.Errorf("rate_limit.backend redis requires redis.enabled")
		}
		return ratelimit.NewRedisLimiter(client, cfg.Redis.Prefix, policies, l), nil
	}
	return ratelimit.NewSlidingWindow(policies, cfg.Ledger.Shards), nil
}

// ProvideEconomy builds every economic subsystem over its own document.
func ProvideEconomy(
	cfg *config.Config,
	limiter ratelimit.Limiter,
	archive repository.TransactionArchive,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Economy {
	store := func(name string) *persistence.Store { return persistence.NewStore(cfg.DataDir, name) }

	journal := usecase.NewJournal(
		cfg.Ledger.JournalMaxPerActor,
		time.Duration(cfg.Ledger.RetentionDays)*24*time.Hour,
		cfg.Ledger.Shards,
		store(docTransactions), m, l,
	)
	ledger := usecase.NewLedger(usecase.LedgerConfig{
		Floor:      models.Money(cfg.Ledger.OverdraftFloor),
		MaxBalance: models.Money(cfg.Ledger.MaxBalance),
		Shards:     cfg.Ledger.Shards,
	}, journal, limiter, store(docBalances), m, l)

	engine := pricing.NewEngine(
		pricing.Bounds{AbsoluteMin: cfg.Pricing.AbsoluteMin, AbsoluteMax: cfg.Pricing.AbsoluteMax},
		pricing.NewMarketBoard(),
		pricing.NewRiskPremium(l),
		pricing.NewEventBoard(),
	)
	for id, p := range cfg.Pricing.Products {
		cat, ok := models.ParseCategory(p.Category)
		if !ok {
			l.Warn("pricing.unknown_category", logger.String("product", id), logger.String("category", p.Category))
			cat = models.CategoryOther
		}
		engine.RegisterProduct(id, p.Price, cat)
	}

	credit := usecase.NewCreditTracker(ledger, store(docCredit), m, l)
	return &usecase.Economy{
		Ledger:  ledger,
		Journal: journal,
		Limiter: limiter,
		Cycle:   cycle.New(seededRand(cfg.Simulation.Seed), store(docCycle), m, l),
		Pricing: engine,
		Credit:  credit,
		Loans:   usecase.NewLoanDesk(ledger, credit, models.Money(cfg.Credit.MinBalance), store(docLoans), m, l),
		Tax: usecase.NewTaxOffice(usecase.TaxConfig{
			PropertyPerChunk: models.Money(cfg.Tax.PropertyPerChunk),
			PeriodDays:       int64(cfg.Tax.PeriodDays),
		}, ledger, service.NoProperty{}, store(docTax), m, l),
		Overdraft: usecase.NewOverdraftDesk(usecase.OverdraftConfig{
			Enabled:    cfg.Overdraft.Enabled,
			Limit:      models.Money(cfg.Overdraft.Limit),
			Warning:    models.Money(cfg.Overdraft.Warning),
			WeeklyRate: decimal.NewFromFloat(cfg.Overdraft.WeeklyRate),
		}, ledger, store(docOverdraft), m, l),
		Savings: usecase.NewSavingsBank(usecase.SavingsConfig{
			MinDeposit:   models.Money(cfg.Savings.MinDeposit),
			MaxPerActor:  models.Money(cfg.Savings.MaxPerActor),
			WeeklyRate:   decimal.NewFromFloat(cfg.Savings.WeeklyRate),
			LockDays:     cfg.Savings.LockDays,
			EarlyPenalty: decimal.NewFromFloat(cfg.Savings.EarlyPenalty),
		}, ledger, store(docSavings), m, l),
		Tracker: usecase.NewEconomyTracker(cfg.Pricing.InflationHigh, cfg.Pricing.DeflationHigh, store(docTracker), m, l),
		Archive: archive,
	}
}

// ProvideSimulation attaches the economy to the day loop.
func ProvideSimulation(cfg *config.Config, e *usecase.Economy, m repository.Metrics, l *logger.Logger) *usecase.Simulation {
	sim := usecase.NewSimulation(usecase.SimulationConfig{
		DayLength:           cfg.Simulation.DayLength,
		TickInterval:        cfg.Simulation.TickInterval,
		FlushInterval:       cfg.Simulation.FlushInterval,
		RotationInterval:    cfg.Simulation.RotationInterval,
		CleanupInterval:     cfg.Simulation.CleanupInterval,
		LimiterIdleTTL:      cfg.RateLimit.IdleTTL,
		RaidDecayInterval:   cfg.Simulation.RaidDecayInterval,
		MoneySupplyInterval: cfg.Simulation.MoneySupplyInterval,
		EventRefresh:        cfg.Simulation.EventRefresh,
	}, persistence.NewStore(cfg.DataDir, docSimulation), m, l)
	// events get their own source; the cycle's rng is guarded by its lock
	sim.Attach(e, seededRand(cfg.Simulation.Seed+1))
	return sim
}

// ProvideTradeDesk creates the sell/buy use case.
func ProvideTradeDesk(e *usecase.Economy, m repository.Metrics, l *logger.Logger) *usecase.TradeDesk {
	return usecase.NewTradeDesk(e.Pricing, e.Ledger, e.Tracker, m, l)
}

// ProvideBatchJob creates the ledger batch job shared by the intake queue
// and the admin API.
func ProvideBatchJob(e *usecase.Economy, l *logger.Logger) *usecase.BatchJob {
	return usecase.NewBatchJob(e.Ledger, l)
}

// ProvideBatchQueue creates the Redis batch intake queue, or nil when it is
// disabled.
func ProvideBatchQueue(cfg *config.Config, client redis.UniversalClient, job *usecase.BatchJob, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJob(job)
	return q
}

// ProvideTransactionRelay subscribes the relay to the ledger.
func ProvideTransactionRelay(
	cfg *config.Config,
	e *usecase.Economy,
	pub repository.TransactionPublisher,
	archive repository.TransactionArchive,
	m repository.Metrics,
	l *logger.Logger,
) (*usecase.TransactionRelay, error) {
	switch cfg.Relay.Backend {
	case usecase.RelayKafka:
		if pub == nil {
			return nil, fmt.Errorf("relay.backend kafka requires kafka.enabled")
		}
	case usecase.RelayClickHouse:
		if archive == nil {
			return nil, fmt.Errorf("relay.backend clickhouse has no archive")
		}
	}
	relay := usecase.NewTransactionRelay(
		cfg.Relay.Backend, pub, archive,
		cfg.Relay.BufferSize, cfg.Relay.BatchSize, cfg.Relay.BatchTimeout,
		m, l,
	)
	e.Ledger.Subscribe(relay.Observe)
	return relay, nil
}

// ProvideKafkaConsumer creates the consumer for the pricing signal topics,
// or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, e *usecase.Economy, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRegisterer(prometheus.DefaultRegisterer),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	topics := cfg.Kafka.Topics
	consumer.RegisterHandler(usecase.NewPricingEventHandler(topics.PricingEvents, e.Pricing.Events(), m, l))
	consumer.RegisterHandler(usecase.NewEnforcementHandler(topics.Enforcement, e.Pricing.Risk(), m, l))
	consumer.RegisterHandler(usecase.NewMarketHandler(topics.Market, e.Pricing.Market(), m))
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ segkafka.Message, _ []byte, _ error) {
			m.RecordError("consume_" + topic)
		},
	})
	return consumer, nil
}

// ProvideFeedHub subscribes the websocket feed to ledger, cycle and
// overdraft notices.
func ProvideFeedHub(e *usecase.Economy, l *logger.Logger) (*feed.Hub, func()) {
	hub := feed.NewHub(feed.Config{}, l)
	e.Ledger.Subscribe(hub.OnTransaction)
	e.Cycle.Subscribe(hub.OnCycle)
	e.Overdraft.Subscribe(hub.OnNotice)
	return hub, func() { _ = hub.Close() }
}

// ProvideQuoteCache layers a short in-process cache over Redis when it is
// available.
func ProvideQuoteCache(client redis.UniversalClient, cfg *config.Config) cache.Service {
	var remote cache.Service
	if client != nil {
		remote = cache.NewRedisCache(client, cache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	return cache.NewLayeredCache(remote, cache.WithLayeredMemorySize(cfg.Pricing.QuoteCacheMax))
}

// ProvideEconomyHandler creates the operator API.
func ProvideEconomyHandler(
	cfg *config.Config,
	sim *usecase.Simulation,
	e *usecase.Economy,
	trades *usecase.TradeDesk,
	batches *usecase.BatchJob,
	quotes cache.Service,
	hub *feed.Hub,
	l *logger.Logger,
) *api.EconomyHandler {
	return api.NewEconomyHandler(api.Deps{
		Simulation: sim,
		Economy:    e,
		Trades:     trades,
		Batches:    batches,
		Archive:    e.Archive,
		Quotes:     quotes,
		QuoteTTL:   cfg.Pricing.QuoteCacheTTL,
		Feed:       hub,
		Log:        l,
	})
}

// ProvideHTTPServer creates the echo server for the operator API.
func ProvideHTTPServer(cfg *config.Config, h *api.EconomyHandler, l *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}

// ProvideApp creates the application host.
func ProvideApp(
	cfg *config.Config,
	sim *usecase.Simulation,
	relay *usecase.TransactionRelay,
	consumer *pkgkafka.Consumer,
	intake *queue.RedisQueue,
	srv *xhttp.Server,
	l *logger.Logger,
) *server.App {
	return server.New(cfg, sim, relay, consumer, intake, srv, l)
}

func seededRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// NewOfflineSimulation assembles the economy without any network client so
// persisted documents can be inspected while the host is down.
func NewOfflineSimulation(cfg *config.Config) *usecase.Simulation {
	l := logger.Nop()
	limiter := ratelimit.NewSlidingWindow(nil, cfg.Ledger.Shards)
	e := ProvideEconomy(cfg, limiter, nil, nil, l)
	return ProvideSimulation(cfg, e, nil, l)
}
