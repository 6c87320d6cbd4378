package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/svxarena/tourneyzone/config"
	"github.com/svxarena/tourneyzone/db"
	"github.com/svxarena/tourneyzone/handlers"
	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/realtime"
	"github.com/svxarena/tourneyzone/repositories"
	api "github.com/svxarena/tourneyzone/routes"
	"github.com/svxarena/tourneyzone/services"
)

const (
	limiterSweepInterval = time.Minute
	limiterVisitorTTL    = 10 * time.Minute
	shutdownTimeout      = 15 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.MigrationsEnabled {
		if err := db.RunMigrations(dbConn, logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Emails stay queued in redis; the API keeps working without them.
		logger.Warn("redis is not reachable, email delivery is delayed", slog.Any("error", err))
	}
	cancelPing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	logger.Info("websocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	txRepo := repositories.NewPostgresTransactionRepository(dbConn)
	settlementRepo := repositories.NewPostgresSettlementRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	bulkRepo := repositories.NewPostgresBulkDepositRepository(dbConn)
	logger.Info("repositories initialized")

	emailService := services.NewEmailService(rdb, cfg, logger)
	go emailService.Start(ctx)

	ledgerService := services.NewLedgerService(dbConn, userRepo, txRepo, settlementRepo, userRepo, cfg.PlatformFeeAccountID, logger)
	authService := services.NewAuthService(dbConn, userRepo, ledgerService, emailService, cfg.SignupBonus, logger)
	walletService := services.NewWalletService(userRepo, ledgerService)
	tournamentService := services.NewTournamentService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		userRepo,
		ledgerService,
		emailService,
		hub,
		cfg.ListingFee,
		cfg.PayoutPlan,
		logger,
	)
	registrationService := services.NewRegistrationService(tournamentRepo, registrationRepo, hub, logger)
	adminService := services.NewAdminService(userRepo, bulkRepo, ledgerService, logger)
	dashboardService := services.NewDashboardService(txRepo)
	logger.Info("services initialized")

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterVisitorTTL)
	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:         handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Wallet:       handlers.NewWalletHandler(walletService),
		Tournament:   handlers.NewTournamentHandler(tournamentService),
		Registration: handlers.NewRegistrationHandler(registrationService),
		Admin:        handlers.NewAdminHandler(adminService, dashboardService),
		WebSocket:    handlers.NewWebSocketHandler(hub, tournamentService, logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:        limiter,
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			cancel()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		// Stop the email worker and close websocket clients before draining HTTP.
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
