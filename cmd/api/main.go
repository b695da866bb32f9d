package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-escrow-engine/config"
	"wallet-escrow-engine/internal/adapter/events"
	httpHandler "wallet-escrow-engine/internal/adapter/http/handler"
	memStorage "wallet-escrow-engine/internal/adapter/storage/memory"
	pgStorage "wallet-escrow-engine/internal/adapter/storage/postgres"
	redisStorage "wallet-escrow-engine/internal/adapter/storage/redis"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/internal/service"
	"wallet-escrow-engine/pkg/logger"
	"wallet-escrow-engine/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Escrow Engine")

	ctx := context.Background()

	// Register Prometheus collectors
	metrics.Init()

	// Initialize storage driver
	var (
		walletStore    ports.WalletStore
		txStore        ports.TransactionStore
		dealStore      ports.DealStore
		transactor     ports.Transactor
		healthCheckers []ports.HealthChecker
	)
	switch cfg.Storage.Driver {
	case "memory":
		walletStore = memStorage.NewWalletStore()
		txStore = memStorage.NewTransactionStore()
		dealStore = memStorage.NewDealStore()
		transactor = memStorage.NewTransactor()
		log.Warn().Msg("Using in-memory storage, all state is lost on restart")
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		walletStore = pgStorage.NewWalletStore(pool)
		txStore = pgStorage.NewTransactionStore(pool)
		dealStore = pgStorage.NewDealStore(pool)
		transactor = pgStorage.NewTransactor(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	}

	// Initialize Redis settled-reference cache (optional)
	var refCache ports.ReferenceCache
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		refCache = redisStorage.NewReferenceCache(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize Kafka event publisher (optional)
	var publisher ports.EventPublisher
	if cfg.Kafka.Enabled {
		kafkaPub := events.NewKafkaPublisher(cfg.Kafka)
		defer kafkaPub.Close() //nolint:errcheck
		publisher = kafkaPub
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka event stream enabled")
	}

	// Initialize business services
	locker := service.NewWalletLocker()
	ledgerSvc := service.NewLedgerService(walletStore, txStore, transactor, locker, publisher, log)
	depositSvc := service.NewDepositService(walletStore, txStore, transactor, locker, refCache, publisher, cfg.Payments, log)
	withdrawalSvc := service.NewWithdrawalService(walletStore, txStore, transactor, locker, publisher, log)
	escrowSvc := service.NewEscrowService(dealStore, ledgerSvc, publisher, log)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         ledgerSvc,
		Deposits:       depositSvc,
		Withdrawals:    withdrawalSvc,
		Escrow:         escrowSvc,
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
