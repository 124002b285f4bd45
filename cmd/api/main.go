package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/binarycomp-backend/api/routes"
	"github.com/angelmondragon/binarycomp-backend/internal/app"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/migrate"
	"github.com/angelmondragon/binarycomp-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	domain, err := app.New(app.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient.DB(),
		TxRunner:   dbClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"addr":        addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg,
			routes.Infra{DB: dbClient, Redis: redisClient, Idempotency: redisClient},
			routes.Services{
				Members:       domain.Members,
				Wallets:       domain.Wallets,
				Tree:          domain.TreeQuery,
				Infinity:      domain.Infinity,
				Orders:        domain.Orders,
				Payouts:       domain.Payouts,
				Notifications: domain.Notifications,
			},
		),
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}
