// cmd/membership-service/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stars-membership/internal/bot"
	"stars-membership/internal/common/config"
	"stars-membership/internal/common/database"
	"stars-membership/internal/common/logger"
	"stars-membership/internal/common/observability"
	"stars-membership/internal/entitlement"
	"stars-membership/internal/membership"
	"stars-membership/internal/server"
	"stars-membership/internal/telegram"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// buildStores selects the linkage and ledger backend from configuration.
func buildStores(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (membership.LinkageRegistry, membership.PaymentLedger, func(), error) {
	switch cfg.Database.Store {
	case "redis":
		var rdb *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, nil, nil, err
		}
		zapLog.Info("Redis connected successfully")
		return membership.NewRedisLinkageRegistry(rdb.Client),
			membership.NewRedisPaymentLedger(rdb.Client),
			func() { _ = rdb.Close() }, nil

	case "postgres":
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")
		return membership.NewPostgresLinkageRegistry(pg.DB),
			membership.NewPostgresPaymentLedger(pg.DB),
			func() { _ = pg.Close() }, nil

	default:
		zapLog.Info("using in-memory stores")
		return membership.NewMemoryLinkageRegistry(),
			membership.NewMemoryPaymentLedger(),
			func() {}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting membership service...",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("membership-service")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linkage, ledger, closeStores, err := buildStores(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("store initialization failed after retries", zap.Error(err))
	}
	defer closeStores()

	tgClient := telegram.NewClient(&cfg.Telegram, log)
	entClient := entitlement.NewClient(&cfg.Entitlement, log)

	product := &membership.Config{
		Price:       cfg.Membership.Price,
		Currency:    cfg.Membership.Currency,
		Title:       cfg.Membership.Title,
		Description: cfg.Membership.Description,
	}

	orchestrator := membership.NewOrchestrator(product, linkage, ledger, tgClient, entClient, log)

	dispatcher := bot.NewDispatcher(tgClient, orchestrator, product, cfg.Telegram.PollTimeout, obs, log)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			zapLog.Error("bot dispatcher stopped", zap.Error(err))
		}
	}()
	zapLog.Info("Bot dispatcher started")

	botRunning := func() bool {
		select {
		case <-botDone:
			return false
		default:
			return true
		}
	}

	handlers := server.NewHandlers(orchestrator, cfg.Telegram.BotToken, botRunning, log)
	srv := server.New(&cfg.Server, handlers, log)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()
	zapLog.Info("HTTP server started", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverDone:
		if err != nil {
			zapLog.Error("http server failed", zap.Error(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		zapLog.Warn("bot dispatcher did not stop in time")
	}

	zapLog.Info("membership service stopped")
}
