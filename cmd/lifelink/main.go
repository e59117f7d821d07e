package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/lifelink/lifelink/internal/app"
	"github.com/lifelink/lifelink/internal/audit"
	"github.com/lifelink/lifelink/internal/bank"
	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/observability"
	"github.com/lifelink/lifelink/internal/platform/cache"
	"github.com/lifelink/lifelink/internal/platform/db"
	"github.com/lifelink/lifelink/internal/realtime"
	"github.com/lifelink/lifelink/internal/request"
	"github.com/lifelink/lifelink/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	hub := realtime.NewHub(logger)
	hub.OnConnectedCountChange(metrics.SetConnectedClients)
	hub.OnPublish(metrics.CountEvent)
	defer hub.Close()

	alerts := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := alerts.Close(); err != nil {
			logger.Warn("alerts client close", slog.Any("error", err))
		}
	}()

	auditor := audit.NewRecorder(pool)

	tokenStore := identity.NewStore(redisClient, cfg.TokenTTL)
	authService := identity.NewService(pool, tokenStore)
	authMiddleware := identity.NewMiddleware(tokenStore)
	authHandler := identity.NewHandler(logger, authService)

	bankRepo := bank.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	requestRepo := request.NewRepository(pool)

	inventoryService := inventory.NewService(logger, inventoryRepo, bankRepo, hub, alerts, auditor)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, authMiddleware, metrics)

	bankService := bank.NewService(logger, bankRepo, inventoryRepo, hub, auditor)
	bankHandler := bank.NewHandler(logger, bankService, authMiddleware)

	stats := realtime.NewStatsSource(logger, hub, requestRepo, redisClient, cfg.StatsInterval)

	requestService := request.NewService(logger, requestRepo, hub, alerts, stats)
	requestHandler := request.NewHandler(logger, requestService, authMiddleware)

	wsHandler := realtime.NewWSHandler(logger, hub, stats)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authMiddleware,
		AuthHandler:      authHandler,
		BankHandler:      bankHandler,
		InventoryHandler: inventoryHandler,
		RequestHandler:   requestHandler,
		WSHandler:        wsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return stats.Run(groupCtx)
	})

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run", slog.Any("error", err))
		os.Exit(1)
	}
}
