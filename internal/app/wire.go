package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tierbet/backoffice/internal/auth"
	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/gameblock"
	"github.com/tierbet/backoffice/internal/guard"
	"github.com/tierbet/backoffice/internal/handler"
	"github.com/tierbet/backoffice/internal/hierarchy"
	"github.com/tierbet/backoffice/internal/infra"
	"github.com/tierbet/backoffice/internal/ledger"
	"github.com/tierbet/backoffice/internal/notify"
	"github.com/tierbet/backoffice/internal/repository"
	"github.com/tierbet/backoffice/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	Hub    *infra.WSHub
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
	userRepo := repository.NewUserRepository()
	ledgerRepo := repository.NewLedgerRepository()
	blockRepo := repository.NewGameBlockRepository()
	authUserRepo := repository.NewAuthUserRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Core domain machinery
	store := hierarchy.NewStore(userRepo, pool)
	engine := ledger.NewEngine(userRepo, ledgerRepo, outboxRepo, cfg.AllowNegativeBalance)
	authority := gameblock.NewAuthority(store, blockRepo, userRepo, outboxRepo, pool)

	var sink notify.Sink = notify.NoopSink{}
	if deps.Hub != nil {
		sink = notify.NewWSSink(deps.Hub)
	}
	limiter := guard.NewRateLimiter(cfg.TransferRateLimit, time.Minute)

	// Services
	accountSvc := service.NewAccountService(pool, userRepo, authUserRepo, outboxRepo, store, jwtMgr, logger)
	walletSvc := service.NewWalletService(pool, engine, authority, store, sink, limiter, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(accountSvc)
	userHandler := handler.NewUserHandler(accountSvc)
	walletHandler := handler.NewWalletHandler(walletSvc)
	betHandler := handler.NewBetHandler(walletSvc)
	gameHandler := handler.NewGameHandler(walletSvc)

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

	// Auth routes (no auth)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwtMgr))

		r.Route("/users", func(r chi.Router) {
			r.With(auth.RequireManager()).Post("/", userHandler.CreateDownline)
			r.With(auth.RequireManager()).Get("/downline", userHandler.ListDownline)
			r.With(auth.RequireManager()).Post("/{userID}/block-betting", betHandler.BlockBetting)
			r.With(auth.RequireManager()).Post("/{userID}/unblock-betting", betHandler.UnblockBetting)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", walletHandler.GetBalance)
			r.With(auth.RequireManager()).Post("/transfer", walletHandler.Transfer)
			r.Get("/ledger", walletHandler.ListLedger)
			r.Get("/ledger/{entryID}", walletHandler.GetEntry)
		})

		r.With(auth.RequireManager()).
			Get("/rounds/{roundID}/ledger", walletHandler.ListRound)

		r.Route("/bets", func(r chi.Router) {
			r.With(auth.RequireRole(domain.RolePlayer)).Post("/place", betHandler.Place)
			r.With(auth.RequireManager()).Post("/settle", betHandler.Settle)
		})

		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Post("/block", gameHandler.Block)
			r.Post("/unblock", gameHandler.Unblock)
			r.Get("/can-play", gameHandler.CanPlay)
		})
	})

	return r
}
