package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/api/handler"
	"github.com/nileshk07/paygrid/internal/api/middleware"
	"github.com/nileshk07/paygrid/internal/api/spec"
	"github.com/nileshk07/paygrid/internal/config"
	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/idempotency"
	"github.com/nileshk07/paygrid/internal/service"
)

// Services bundles the service layer the router exposes.
type Services struct {
	Store          service.RateStore
	Rates          *service.RateService
	Fees           *service.FeeService
	Ledger         *service.LedgerService
	Query          *service.LedgerQueryService
	Settlement     *service.SettlementService
	Payouts        *service.PayoutService
	Reconciliation *service.ReconciliationService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	idemStore *idempotency.Store
	redis     redis.Cmdable
	services  Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, idemStore *idempotency.Store, redisClient redis.Cmdable, services Services) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		idemStore: idemStore,
		redis:     redisClient,
		services:  services,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	authHandler := handler.NewAuthHandler(api.services.Store)
	catalogHandler := handler.NewCatalogHandler(api.services.Store, api.services.Ledger)
	rateHandler := handler.NewRateHandler(api.services.Rates, api.services.Fees)
	walletHandler := handler.NewWalletHandler(api.services.Ledger, api.services.Query)
	payoutHandler := handler.NewPayoutHandler(api.services.Payouts)
	settlementHandler := handler.NewSettlementHandler(api.services.Settlement)
	reconHandler := handler.NewReconciliationHandler(api.services.Reconciliation)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)
	platformOnly := middleware.RequireRole(domain.RolePlatform.String())

	// Operational surface
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/wallets/{id}", walletHandler.GetWallet)
		r.Get("/v1/wallets/{id}/ledger", walletHandler.Ledger)
		r.Get("/v1/wallets/{id}/ledger/export", walletHandler.ExportLedger)
		r.With(idem).Post("/v1/transfers", walletHandler.Transfer)

		r.With(idem).Post("/v1/payouts", payoutHandler.CreatePayout)
		r.Get("/v1/payouts/{id}", payoutHandler.GetPayout)

		r.Get("/v1/users/{id}/channels/{channelID}/rate", rateHandler.ResolveRate)

		// Platform-only administration
		r.Group(func(r chi.Router) {
			r.Use(platformOnly)

			r.Post("/v1/users", catalogHandler.CreateUser)
			r.Post("/v1/gateways", catalogHandler.CreateGateway)
			r.Post("/v1/gateways/{id}/channels", catalogHandler.CreateChannel)
			r.Post("/v1/schemas", catalogHandler.CreateSchema)

			r.Put("/v1/schemas/{id}/channels/{channelID}/rate", rateHandler.SetSchemaRate)
			r.Put("/v1/users/{id}/channels/{channelID}/rate", rateHandler.SetUserOverride)
			r.Put("/v1/gateways/{id}/payout-slabs", rateHandler.SetPayoutSlabs)
			r.Get("/v1/gateways/{id}/payout-fee", rateHandler.ComputeFee)

			r.With(idem).Post("/v1/wallets/{id}/credit", walletHandler.Credit)
			r.With(idem).Post("/v1/wallets/{id}/debit", walletHandler.Debit)
			r.With(idem).Post("/v1/wallets/{id}/refund", walletHandler.Refund)

			r.With(idem).Post("/v1/settlements/payin", settlementHandler.SettlePayin)
			r.Post("/v1/reconciliation/run", reconHandler.Run)
		})
	})

	return r
}
