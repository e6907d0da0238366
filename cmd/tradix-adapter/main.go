package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/api"
	"github.com/Checker-Finance/tradix-adapter/internal/config"
	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/history"
	"github.com/Checker-Finance/tradix-adapter/internal/order"
	"github.com/Checker-Finance/tradix-adapter/internal/publisher"
	"github.com/Checker-Finance/tradix-adapter/internal/rabbitmq"
	"github.com/Checker-Finance/tradix-adapter/internal/rate"
	"github.com/Checker-Finance/tradix-adapter/internal/secrets"
	"github.com/Checker-Finance/tradix-adapter/internal/store"
	"github.com/Checker-Finance/tradix-adapter/internal/tradix"
	"github.com/Checker-Finance/tradix-adapter/pkg/eventbus"
	"github.com/Checker-Finance/tradix-adapter/pkg/logger"
	pkgsecrets "github.com/Checker-Finance/tradix-adapter/pkg/secrets"
	"github.com/Checker-Finance/tradix-adapter/pkg/utils"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	log.Info("starting tradix-adapter",
		zap.String("version", Version),
		zap.String("env", cfg.Env),
		zap.String("gateway", cfg.GatewayURL),
		zap.String("rabbitmq", utils.MaskDSN(cfg.RabbitMQURL)),
		zap.String("database", utils.MaskDSN(cfg.DatabaseURL)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creds, err := loadCredentials(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to load Tradix credentials", zap.Error(err))
	}

	// Persistence (Redis cache + optional Postgres ledger)
	hybrid, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.CacheTTL, log)
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}

	// Backfill client for the broker's pull-side history API
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.HistoryRateLimit,
		Burst:             cfg.HistoryRateBurst,
	})
	historyClient := tradix.NewHistoryClient(cfg.HistoryBaseURL, creds.APIKey, rateMgr, log)

	// Execution history store, warm-started from the durable ledger
	histStore := history.New(historyClient, hybrid, log)
	warmStart(ctx, cfg, hybrid, histStore, log)

	// Event bus and tracker
	bus := eventbus.New()
	tracker := execution.NewTracker(bus, histStore, log)

	// Tradix gateway session
	gwClient := tradix.NewClient(cfg.GatewayURL, cfg.ReconnectDelay, log)
	if err := gwClient.Connect(ctx); err != nil {
		log.Fatal("failed to connect to Tradix gateway", zap.Error(err))
	}

	session := tradix.NewSession(gwClient, log)
	session.SetAuth(&tradix.AuthenticateRequest{
		APIKey:    creds.APIKey,
		Signature: creds.APISecret,
		Nonce:     creds.Nonce,
	})

	orderService := order.NewService(session, tracker, log)

	if err := session.Login(ctx); err != nil {
		log.Fatal("failed to authenticate with Tradix", zap.Error(err))
	}
	if err := session.SubscribeExecutions(ctx, cfg.Account); err != nil {
		log.Fatal("failed to subscribe to execution reports", zap.Error(err))
	}

	// Outbound NATS publisher
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	pub, err := publisher.New(nc, cfg.OutboundSubject, cfg.ServiceName, log)
	if err != nil {
		log.Fatal("failed to create publisher", zap.Error(err))
	}
	pub.AttachBus(bus)

	// Inbound command consumer
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, cfg.Provider, orderService, log)
	if err != nil {
		log.Fatal("failed to create RabbitMQ consumer", zap.Error(err))
	}
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("failed to start RabbitMQ consumer", zap.Error(err))
	}

	// Query surface
	app := fiber.New(fiber.Config{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QueryTimeout + 5*time.Second,
	})
	historyHandler := api.NewHistoryHandler(log, histStore, cfg.QueryTimeout)
	api.RegisterRoutes(app, nc, hybrid, historyHandler)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Error("http server exited", zap.Error(err))
		}
	}()

	log.Info("tradix-adapter started", zap.Int("port", cfg.Port))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")

	if err := consumer.Close(); err != nil {
		log.Error("failed to close consumer", zap.Error(err))
	}
	if err := session.Close(); err != nil {
		log.Error("failed to close gateway session", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("failed to shut down http server", zap.Error(err))
	}
	pub.Close()
	if err := hybrid.Close(); err != nil {
		log.Error("failed to close store", zap.Error(err))
	}

	cancel()
	log.Info("graceful shutdown completed")
}

// loadCredentials resolves Tradix API credentials from AWS Secrets Manager
// when a secret name is configured, falling back to environment variables.
func loadCredentials(ctx context.Context, cfg *config.Config, log *zap.Logger) (secrets.Credentials, error) {
	if cfg.AWSSecretName != "" {
		log.Info("loading credentials from AWS Secrets Manager",
			zap.String("secret", cfg.AWSSecretName))

		provider, err := pkgsecrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			return secrets.Credentials{}, err
		}
		resolver := secrets.NewResolver(provider, cfg.AWSSecretName, cfg.SecretTTL, log)
		return resolver.Resolve(ctx)
	}

	log.Info("loading credentials from environment variables")
	creds := secrets.Credentials{
		APIKey:    os.Getenv("TRADIX_API_KEY"),
		APISecret: os.Getenv("TRADIX_API_SECRET"),
		Nonce:     os.Getenv("TRADIX_API_NONCE"),
	}
	if creds.APIKey == "" {
		return secrets.Credentials{}, fmt.Errorf("TRADIX_API_KEY not set")
	}
	log.Info("credentials loaded", zap.String("api_key", utils.MaskSecret(creds.APIKey)))
	return creds, nil
}

// warmStart preloads the in-memory history index from the durable ledger so
// restarts do not force a broker backfill for recently observed executions.
func warmStart(ctx context.Context, cfg *config.Config, st store.Store, histStore *history.Store, log *zap.Logger) {
	if cfg.DatabaseURL == "" || cfg.WarmStartWindow <= 0 {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	execs, err := st.GetExecutionsBetween(loadCtx, now.Add(-cfg.WarmStartWindow), now)
	if err != nil {
		log.Warn("warm start skipped", zap.Error(err))
		return
	}
	for _, e := range execs {
		histStore.Append(e)
	}
	log.Info("warm start complete", zap.Int("executions", len(execs)))
}
