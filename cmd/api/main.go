package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/loveline/loveline-api/internal/config"
	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/checkout"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/order"
	"github.com/loveline/loveline-api/internal/domain/settlement"
	"github.com/loveline/loveline-api/internal/domain/transfer"
	"github.com/loveline/loveline-api/internal/domain/user"
	"github.com/loveline/loveline-api/internal/middleware"
	"github.com/loveline/loveline-api/internal/pkg/database"
	"github.com/loveline/loveline-api/internal/pkg/jwt"
	"github.com/loveline/loveline-api/internal/pkg/logger"
	"github.com/loveline/loveline-api/internal/pkg/metrics"
	"github.com/loveline/loveline-api/internal/pkg/paygate"
	pkgresponse "github.com/loveline/loveline-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Loveline economy API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	runner := database.NewRunner(db)
	m := metrics.New()

	paygateClient := paygate.NewClient(paygate.Config{
		BaseURL:      cfg.PaygateBaseURL,
		ClientID:     cfg.PaygateClientID,
		ClientSecret: cfg.PaygateClientSecret,
		Timeout:      cfg.PaygateTimeout,
	}, redis)

	// ---------- Repositories ----------
	billRepo := bill.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db, billRepo)
	catalogRepo := catalog.NewRepository(db)
	userRepo := user.NewRepository(db)
	orderRepo := order.NewRepository(db)
	transferRepo := transfer.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo, billRepo, runner, m)
	settlementService := settlement.NewService(orderRepo, ledgerRepo, catalogRepo, paygateClient, runner, m, cfg.PaygateCurrency)
	checkoutService := checkout.NewService(orderRepo, ledgerRepo, catalogRepo, userRepo, runner, m)
	transferService := transfer.NewService(transferRepo, ledgerRepo, userRepo, runner, m,
		time.Duration(cfg.TransferExpiryDays)*24*time.Hour)

	transferWorker := transfer.NewWorker(transferService, cfg.TransferSweepInterval)
	transferWorker.Start()
	defer transferWorker.Stop()

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	settlementHandler := settlement.NewHandler(settlementService)
	checkoutHandler := checkout.NewHandler(checkoutService)
	transferHandler := transfer.NewHandler(transferService)

	authMiddleware := middleware.Auth(jwtService)
	adminOnly := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", ledgerHandler.Routes(authMiddleware))
		r.Mount("/payments", settlementHandler.Routes(authMiddleware))
		r.Mount("/orders", checkoutHandler.Routes(authMiddleware))
		r.Mount("/transfers", transferHandler.Routes(authMiddleware))
		r.Mount("/system", ledgerHandler.SystemRoutes(authMiddleware, adminOnly))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
