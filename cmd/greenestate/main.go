package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/catalog"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/config"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/database"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/events"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/holdings"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger/store"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/lock"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/quotes"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/redis"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/telemetry"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/tokenization"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/logger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger
	zapLogger, err := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
		Tracing:     cfg.Tracing.Enabled,
		Metrics:     cfg.Tracing.StdoutMetrics,
	})
	if err != nil {
		zapLogger.Fatal("Failed to set up telemetry", zap.Error(err))
	}

	// Connect to the ledger database
	db, err := database.Open(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	go database.CollectPoolStats(ctx, db, cfg.Database.Driver, 15*time.Second)

	ledgerStore := store.New(db, zapLogger.Named("ledger"))

	// Connect to Redis when a component needs it
	var redisClient *redis.Client
	var rdb goredis.UniversalClient
	if cfg.NeedsRedis() {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		rdb = redisClient.GetClient()
	}

	var index holdings.Index
	switch cfg.Holdings.Backend {
	case holdings.BackendSQL:
		sqlIndex := holdings.NewSQLIndex(db, zapLogger.Named("holdings"))
		if cfg.Database.AutoMigrate {
			if err := sqlIndex.Migrate(); err != nil {
				zapLogger.Fatal("Failed to migrate holdings tables", zap.Error(err))
			}
		}
		index = sqlIndex
	default:
		index = holdings.NewRedisIndex(rdb, cfg.Holdings.MarkerTTL, zapLogger.Named("holdings"))
	}

	if cfg.Database.AutoMigrate {
		if err := ledgerStore.Migrate(); err != nil {
			zapLogger.Fatal("Failed to migrate ledger tables", zap.Error(err))
		}
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case lock.BackendRedis:
		locker = lock.NewRedisLocker(rdb, cfg.Lock.Expiry, cfg.Lock.Tries, zapLogger.Named("lock"))
	default:
		locker = lock.NewLocalLocker()
	}

	// Event publishers, each enabled by its destination
	var publishers []events.Publisher
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, zapLogger)
		publishers = append(publishers, kafkaPublisher)
	}
	if cfg.Events.RedisStream {
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Events.StreamMaxLen, zapLogger))
	}
	if cfg.Events.WebhookURL != "" {
		publishers = append(publishers, events.NewWebhookPublisher(cfg.Events.WebhookURL, 5*time.Second, zapLogger))
	}
	var notifier tokenization.Notifier
	if len(publishers) > 0 {
		notifier = events.NewEventPublisher(publishers, cfg.Events.Topic, zapLogger)
	}

	policy, err := cfg.Ledger.Policy()
	if err != nil {
		zapLogger.Fatal("Invalid ledger policy", zap.Error(err))
	}
	tokenSvc := tokenization.NewService(ledgerStore, index, locker, notifier, tokenization.Config{
		Policy:            policy,
		MaxAttempts:       cfg.Ledger.MaxAttempts,
		RetryBackoff:      cfg.Ledger.RetryBackoff,
		PersistTimeout:    cfg.Ledger.PersistTimeout,
		ReconcileInterval: cfg.Ledger.ReconcileInterval,
		ReconcileAfter:    cfg.Ledger.ReconcileAfter,
		ReconcileBatch:    cfg.Ledger.ReconcileBatch,
	}, zapLogger.Named("tokenization"))
	if err := tokenSvc.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start tokenization service", zap.Error(err))
	}

	v := validation.NewValidator(zapLogger)
	var quoteCache goredis.UniversalClient
	if cfg.Quotes.CacheTTL > 0 {
		quoteCache = rdb
	}

	checks := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	apiServer, err := api.NewServer(cfg.Server, cfg.Tracing.ServiceName, api.Dependencies{
		Ledger:    tokenSvc,
		Catalog:   catalog.NewService(db, ledgerStore, v, zapLogger.Named("catalog")),
		Quotes:    quotes.NewProvider(cfg.Quotes.BaseURL, cfg.Quotes.APIKey, cfg.Quotes.Timeout, quoteCache, cfg.Quotes.CacheTTL, zapLogger.Named("quotes")),
		Validator: v,
		Auth:      auth.AuthorizationConfig{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer},
		Checks:    checks,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create API server", zap.Error(err))
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			zapLogger.Error("API server stopped", zap.Error(err))
		}
	}
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	if err := tokenSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop tokenization service", zap.Error(err))
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			zapLogger.Error("Failed to close Kafka writer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zapLogger.Error("Failed to close Redis client", zap.Error(err))
		}
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush telemetry", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
