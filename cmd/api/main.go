package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dreka/internal/auth"
	"dreka/internal/db"
	"dreka/internal/docstore"
	"dreka/internal/domain/ratings"
	"dreka/internal/domain/storage"
	"dreka/internal/domain/suggestions"
	"dreka/internal/domain/users"
	"dreka/internal/domain/venues"
	"dreka/internal/fanout"
	"dreka/internal/metrics"
	"dreka/internal/notifications"
	"dreka/internal/ratelimiter"
	"dreka/internal/topics"
	"dreka/internal/triggers"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	sourcePostgres = "postgres"
	sourceKafka    = "kafka"
)

// writtenCollections are the collections the API writes to. A trigger bound
// elsewhere can never fire.
var writtenCollections = []string{users.Collection, venues.Collection, ratings.Collection, suggestions.Collection}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() (ratelimiter.Config, error) {
	requests, err := envInt("RATELIMITER_REQUESTS_COUNT", 200)
	if err != nil {
		return ratelimiter.Config{}, err
	}
	enabled, err := envBool("RATE_LIMITER_ENABLED", false)
	if err != nil {
		return ratelimiter.Config{}, err
	}
	return ratelimiter.Config{
		RequestsPerTimeFrame: requests,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}, nil
}

func loadConfig() (config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 30)
	collect(err)
	redisDB, err := envInt("REDIS_DB", 0)
	collect(err)
	pollInterval, err := envDuration("TRIGGER_POLL_INTERVAL", triggers.DefaultPollInterval)
	collect(err)
	retention, err := envDuration("TRIGGER_RETENTION", 7*24*time.Hour)
	collect(err)
	relay, err := envBool("KAFKA_RELAY", true)
	collect(err)
	rl, err := LoadRateLimiterConfig()
	collect(err)

	cfg := config{
		addr:   envString("ADDR", ":8080"),
		env:    envString("ENV", "development"),
		apiURL: envString("EXTERNAL_URL", "localhost:8080"),
		db: dbConfig{
			addr:         os.Getenv("DB_ADDR"),
			maxOpenConns: maxOpenConns,
			maxIdleTime:  envString("DB_MAX_IDLE_TIME", "15m"),
		},
		redis: redisConfig{
			addr:     envString("REDIS_ADDR", "localhost:6379"),
			password: os.Getenv("REDIS_PASSWORD"),
			db:       redisDB,
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				aud:    os.Getenv("AUTH_TOKEN_AUD"),
				iss:    os.Getenv("AUTH_TOKEN_ISS"),
			},
		},
		expo: expoConfig{
			accessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		triggers: triggerConfig{
			source:       envString("TRIGGER_SOURCE", sourcePostgres),
			bindingsFile: os.Getenv("TRIGGER_BINDINGS_FILE"),
			pollInterval: pollInterval,
			retention:    retention,
			kafka: kafkaConfig{
				brokers: envList("KAFKA_BROKERS", []string{"localhost:9092"}),
				topic:   envString("KAFKA_TOPIC", "dreka.document-changes"),
				groupID: envString("KAFKA_GROUP_ID", "dreka-fanout"),
				relay:   relay,
			},
		},
		rateLimiter: rl,
	}

	if cfg.db.addr == "" {
		errs = append(errs, errors.New("DB_ADDR is required"))
	}
	if cfg.auth.token.secret == "" {
		errs = append(errs, errors.New("AUTH_TOKEN_SECRET is required"))
	}
	if cfg.triggers.source != sourcePostgres && cfg.triggers.source != sourceKafka {
		errs = append(errs, fmt.Errorf("TRIGGER_SOURCE must be %s or %s, got %q", sourcePostgres, sourceKafka, cfg.triggers.source))
	}
	return cfg, errors.Join(errs...)
}

// NewLogger returns a colored console logger, or zap's JSON production
// logger when env is production.
func NewLogger(env string) (*zap.SugaredLogger, error) {
	if env == "production" {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return logger.Sugar(), nil
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar(), nil
}

var version = "1.1.0"

//	@title			Dreka API
//	@description	Venue ratings, suggestions and favourites for the Dreka app. Writes here fan out as push notifications.

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer access token

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := NewLogger(cfg.env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.New(cfg.db.addr, int32(cfg.db.maxOpenConns), cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	docs := docstore.NewPostgresStore(pool)
	if err := docs.EnsureSchema(ctx); err != nil {
		logger.Fatal(err)
	}
	store := storage.NewContainer(docs)

	// Topic registry
	rdb, err := db.NewRedis(db.RedisConfig{
		Addr:     cfg.redis.addr,
		Password: cfg.redis.password,
		DB:       cfg.redis.db,
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()
	registry := topics.NewRegistry(rdb)

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	// Push delivery
	push := notifications.NewExpoAdapter(notifications.NewExpoClient(cfg.expo.accessToken))
	gateway := notifications.Instrumented(notifications.NewExpoGateway(push, registry, logger), m)

	// Triggers
	bindings, err := triggers.LoadBindings(cfg.triggers.bindingsFile, fanout.DefaultBindings())
	if err != nil {
		logger.Fatal(err)
	}
	for _, name := range bindings.Unwritten(writtenCollections) {
		logger.Warnw("trigger bound to a collection nothing writes, it will never fire",
			"handler", name,
			"collection", bindings[name].Collection,
		)
	}

	dispatcher := triggers.NewDispatcher(logger, m)
	notifier := fanout.NewNotifier(store.Users, store.Venues, gateway, logger, m)
	if err := notifier.Register(dispatcher, bindings); err != nil {
		logger.Fatal(err)
	}
	outbox := triggers.NewPostgresSource(pool, logger, cfg.triggers.pollInterval)

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.aud, cfg.auth.token.iss),
		rateLimiter:   rateLimiter,
		subscriptions: registry,
		gatherer:      promRegistry,
		metrics:       m,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.run(ctx, app.mount()) })
	g.Go(func() error { return app.pruneDispatchedChanges(ctx, outbox, cfg.triggers.retention, time.Hour) })
	if cfg.rateLimiter.Enabled {
		g.Go(func() error {
			rateLimiter.Cleanup(ctx)
			return nil
		})
	}

	switch cfg.triggers.source {
	case sourcePostgres:
		g.Go(func() error { return dispatcher.Run(ctx, outbox) })
	case sourceKafka:
		kcfg := triggers.KafkaConfig{
			Brokers: cfg.triggers.kafka.brokers,
			Topic:   cfg.triggers.kafka.topic,
			GroupID: cfg.triggers.kafka.groupID,
		}
		if cfg.triggers.kafka.relay {
			relay := triggers.NewKafkaRelay(kcfg)
			defer relay.Close()
			g.Go(func() error { return outbox.Run(ctx, relay.Deliver) })
		}
		g.Go(func() error { return dispatcher.Run(ctx, triggers.NewKafkaSource(kcfg, logger)) })
	}
	logger.Infow("trigger pipeline started", "source", cfg.triggers.source, "handlers", bindings.Names())

	if err := g.Wait(); err != nil {
		logger.Fatal(err)
	}
}
