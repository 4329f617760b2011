package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/guard"
	"github.com/partnerlink/platform/internal/handler"
	adminhandler "github.com/partnerlink/platform/internal/handler/admin"
	"github.com/partnerlink/platform/internal/infra"
	"github.com/partnerlink/platform/internal/lifecycle"
	"github.com/partnerlink/platform/internal/repository"
	"github.com/partnerlink/platform/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	Logger *slog.Logger
	Config *infra.Config
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	jwtMgr := deps.JWTMgr
	logger := deps.Logger
	cfg := deps.Config

	// Repositories
	clickRepo := repository.NewClickRepository()
	conversionRepo := repository.NewConversionRepository()
	commissionRepo := repository.NewCommissionRepository()
	policyRepo := repository.NewPolicyRepository()
	partnerRepo := repository.NewPartnerRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Guards
	clickLimiter := guard.NewRateLimiter(cfg.ClickRateLimit, cfg.ClickRateWindow)

	// Services
	trackingSvc := service.NewTrackingService(pool, clickRepo, partnerRepo, clickLimiter, cfg.ClickDedupWindow, logger)
	commissionSvc := service.NewCommissionService(pool, commissionRepo, policyRepo, outboxRepo, logger)
	attributionSvc := service.NewAttributionService(pool, clickRepo, conversionRepo, partnerRepo, outboxRepo,
		commissionSvc, cfg.AttributionWindow, cfg.AttributionClaimTries, logger)
	policySvc := service.NewPolicyService(pool, policyRepo, outboxRepo, logger)
	statsSvc := service.NewStatsService(pool, conversionRepo, commissionRepo, logger)
	lifecycleMgr := lifecycle.NewManager(pool, conversionRepo, commissionRepo, outboxRepo, logger)

	// Handlers
	trackingHandler := handler.NewTrackingHandler(trackingSvc)
	conversionHandler := handler.NewConversionHandler(attributionSvc, statsSvc)
	commissionHandler := handler.NewCommissionHandler(commissionSvc, statsSvc)

	// Admin handlers
	conversionAdmin := adminhandler.NewConversionAdminHandler(lifecycleMgr, attributionSvc)
	commissionAdmin := adminhandler.NewCommissionAdminHandler(lifecycleMgr)
	policyAdmin := adminhandler.NewPolicyAdminHandler(policySvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// Public click ingestion (no auth — sits behind referral links)
	r.Post("/track/click", trackingHandler.RecordClick)

	adminOnly := auth.AuthenticateAdmin(jwtMgr)

	// Partner- or admin-scoped read routes; the conversion ingress and
	// top-partners ranking require the admin realm.
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateAny(jwtMgr))

		r.Route("/tracking", func(r chi.Router) {
			r.Route("/clicks", func(r chi.Router) {
				r.Get("/", trackingHandler.GetClicks)
				r.Get("/stats", trackingHandler.GetClickStats)
				r.Get("/{id}", trackingHandler.GetClick)
			})

			r.Route("/conversions", func(r chi.Router) {
				// Order-subsystem ingress
				r.With(adminOnly).Post("/", conversionHandler.RecordConversion)

				r.Get("/", conversionHandler.GetConversions)
				r.Get("/stats", conversionHandler.GetConversionStats)
				r.Get("/{id}", conversionHandler.GetConversion)
			})
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", commissionHandler.GetCommissions)
			r.Get("/stats", commissionHandler.GetCommissionStats)
			r.With(adminOnly).Get("/top-partners", commissionHandler.GetTopPartners)
			r.Get("/{id}", commissionHandler.GetCommission)
			r.Get("/{id}/adjustments", commissionHandler.GetAdjustments)
		})
	})

	// Admin-authenticated routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminOnly)

		r.Route("/conversions/{id}", func(r chi.Router) {
			r.Post("/confirm", conversionAdmin.Confirm)
			r.Post("/cancel", conversionAdmin.Cancel)
			r.Post("/refund", conversionAdmin.Refund)
			r.Post("/attribute", conversionAdmin.Attribute)
		})

		r.Route("/commissions/{id}", func(r chi.Router) {
			r.Post("/confirm", commissionAdmin.Confirm)
			r.Post("/cancel", commissionAdmin.Cancel)
			r.Post("/adjust", commissionAdmin.Adjust)
			r.Post("/pay", commissionAdmin.Pay)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Post("/", policyAdmin.Upsert)
			r.Get("/", policyAdmin.List)
			r.Get("/{id}", policyAdmin.Get)
		})
	})

	return r
}
