package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"settlement/application"
	"settlement/bot"
	"settlement/config"
	"settlement/database"
	"settlement/domain/resolver"
	"settlement/infrastructure"
	"settlement/infrastructure/observability"
	"settlement/repository"

	"github.com/redis/go-redis/v9"
)

// Run initializes and starts the settlement engine
func Run(ctx context.Context) error {
	log.Println("Starting settlement engine...")

	cfg := config.Get()
	ConfigureLogging(cfg)

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Println("Database connection established successfully")

	log.Println("Running database migrations...")
	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	backend, err := newEventBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	// Optional Redis tier in front of the idempotency key table
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err = infrastructure.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Println("Redis connection established successfully")
	}
	idempotency := infrastructure.NewIdempotencyStore(redisClient, repository.NewIdempotencyRepository(db), cfg.IdempotencyTTL)

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, backend.publisher)
	rng, err := resolver.NewSecureSource()
	if err != nil {
		return err
	}
	outcomes := resolver.NewDefault(rng)
	engine := application.NewEngine(
		uowFactory,
		idempotency,
		outcomes,
		application.NewCollector(cfg.PromptTimeout),
		nil,
		cfg.IntentTimeout,
	)

	// Operational endpoints
	checks := []infrastructure.HealthFunc{func(ctx context.Context) error {
		if !db.Healthy(ctx) {
			return errors.New("database unreachable")
		}
		return nil
	}}
	if backend.natsClient != nil {
		checks = append(checks, backend.natsClient.Health)
	}
	health := infrastructure.CombineHealth(checks...)
	opsServer := infrastructure.NewOpsServer(cfg.OpsAddr, db.Pool, health)
	opsServer.Start()
	grpcHealth := infrastructure.NewGRPCHealthServer(cfg.GRPCHealthAddr, health, 10*time.Second)
	if err := grpcHealth.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gRPC health server: %w", err)
	}

	// Intents published by other adapters
	if backend.natsClient != nil {
		subscriber := infrastructure.NewIntentSubscriber(ctx, backend.natsClient, engine)
		if err := subscriber.Start(); err != nil {
			return fmt.Errorf("failed to start intent subscriber: %w", err)
		}
	}

	// Initialize Discord bot
	log.Println("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.GuildID,
		Timeout: cfg.IntentTimeout,
	}, engine)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	engine.SetNotifier(discordBot)
	bot.RegisterBotSubscriptions(uowFactory, discordBot)
	log.Println("Discord bot initialized successfully")

	// Start background workers
	stopSessions := application.StartSessionWorker(ctx,
		application.NewSessionWorker(uowFactory, outcomes, cfg.SweepBatchSize), cfg.SessionTick, opsServer)
	stopSweep := application.StartSettlementSweepWorker(ctx,
		application.NewSettlementSweeper(uowFactory, outcomes, cfg.SweepBatchSize), cfg.SweepInterval, opsServer)
	stopPurge := application.StartIdempotencyPurgeWorker(ctx, idempotency, cfg.IdempotencyTTL, opsServer)
	log.Println("Background workers started")

	log.Printf("Settlement engine is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Println("Shutting down settlement engine...")

	// Stop taking new intents before the workers go away
	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}
	stopSessions()
	stopSweep()
	stopPurge()
	grpcHealth.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down ops server: %v", err)
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics: %v", err)
	}

	log.Println("Shutdown completed")
	return nil
}
