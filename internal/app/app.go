package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/api"
	"github.com/nileshk07/paygrid/internal/api/middleware"
	"github.com/nileshk07/paygrid/internal/config"
	"github.com/nileshk07/paygrid/internal/db"
	"github.com/nileshk07/paygrid/internal/gateway"
	"github.com/nileshk07/paygrid/internal/idempotency"
	"github.com/nileshk07/paygrid/internal/observability"
	"github.com/nileshk07/paygrid/internal/repository"
	"github.com/nileshk07/paygrid/internal/service"
	"github.com/nileshk07/paygrid/internal/worker"
)

// stores is the combined storage contract both drivers satisfy.
type stores interface {
	service.RateStore
	service.WalletStore
	service.PayoutStore
}

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store       stores
		pool        *pgxpool.Pool
		redisClient *redis.Client
		idemStore   *idempotency.Store
	)
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		idemStore = idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
		store = repository.NewPostgresStore(pool)
	case config.DriverMemory:
		// Single-process mode: no external dependencies, no cross-request
		// idempotency middleware (the ledger's reference ids still apply).
		store = repository.NewMemoryStore()
	}

	rateSvc := service.NewRateService(store)
	feeSvc := service.NewFeeService(store)
	commissionSvc := service.NewCommissionService(store, rateSvc)
	ledgerSvc := service.NewLedgerService(store)
	querySvc := service.NewLedgerQueryService(store)
	settlementSvc := service.NewSettlementService(rateSvc, commissionSvc, ledgerSvc)
	payoutSvc := service.NewPayoutService(ledgerSvc, feeSvc, store, gateway.NewMockGateway())
	reconSvc := service.NewReconciliationService(store)

	payoutWorker := worker.NewPayoutWorker(payoutSvc).
		WithPollInterval(cfg.PayoutPollInterval).
		WithBatchSize(cfg.PayoutBatchSize)
	stopPayoutWorker := payoutWorker.Run(ctx)

	reconWorker := worker.NewReconciliationWorker(reconSvc).
		WithInterval(cfg.ReconciliationInterval)
	stopReconWorker := reconWorker.Run(ctx)

	router := api.NewRouter(cfg, logger, pool, idemStore, redisCmdable(redisClient), api.Services{
		Store:          store,
		Rates:          rateSvc,
		Fees:           feeSvc,
		Ledger:         ledgerSvc,
		Query:          querySvc,
		Settlement:     settlementSvc,
		Payouts:        payoutSvc,
		Reconciliation: reconSvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("storage_driver", cfg.StorageDriver),
		)
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopPayoutWorker()
	stopReconWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// redisCmdable avoids handing a typed-nil *redis.Client to interface fields.
func redisCmdable(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}
