package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/panelkit/smm-engine/internal/config"
	"github.com/panelkit/smm-engine/internal/handler"
	"github.com/panelkit/smm-engine/internal/infra/postgresql"
	"github.com/panelkit/smm-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/panelkit/smm-engine/internal/infra/redis"
	"github.com/panelkit/smm-engine/internal/observability"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/queue"
	"github.com/panelkit/smm-engine/internal/repository"
	"github.com/panelkit/smm-engine/internal/service"
	"github.com/panelkit/smm-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("smm-engine stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rmq.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.ProviderRatePerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	providerRepo := repository.NewGormProviderRepo(db)
	serviceRepo := repository.NewGormServiceRepo(db)
	orderRepo := repository.NewGormOrderRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	gateway := provider.NewForwarder(logger)
	publisher := queue.NewRabbitMQPublisher(rmq)
	consumer := queue.NewRabbitMQConsumer(rmq, cfg.WorkerConcurrency, logger)

	metrics := observability.NewMetrics()

	providerService, err := service.NewProviderService(providerRepo, serviceRepo, gateway, cfg.DefaultMarkupPercent, logger)
	if err != nil {
		return fmt.Errorf("provider service init failed: %w", err)
	}

	orderService, err := service.NewOrderService(orderRepo, serviceRepo, providerService, gateway, publisher, logger)
	if err != nil {
		return fmt.Errorf("order service init failed: %w", err)
	}

	worker, err := service.NewForwardWorker(
		orderRepo,
		serviceRepo,
		attemptRepo,
		consumer,
		providerService,
		gateway,
		rateLimiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		return fmt.Errorf("forward worker init failed: %w", err)
	}
	worker.SetMetrics(metrics)

	retryScanner, err := service.NewRetryScanner(orderRepo, publisher, 0, 0, logger)
	if err != nil {
		return fmt.Errorf("retry scanner init failed: %w", err)
	}

	syncService, err := service.NewSyncService(
		orderRepo,
		providerService,
		gateway,
		time.Duration(cfg.SyncIntervalSeconds)*time.Second,
		cfg.SyncBatchLimit,
		logger,
	)
	if err != nil {
		return fmt.Errorf("sync service init failed: %w", err)
	}
	syncService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterOrderRoutes(app, orderService, attemptRepo); err != nil {
		return fmt.Errorf("failed to register order routes: %w", err)
	}
	if err := handler.RegisterProviderRoutes(app, providerService); err != nil {
		return fmt.Errorf("failed to register provider routes: %w", err)
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("fiber listen failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return retryScanner.Start(groupCtx)
	})

	g.Go(func() error {
		return syncService.Start(groupCtx)
	})

	logger.Info("smm-engine started")
	err = g.Wait()
	logger.Info("smm-engine stopped")
	return err
}
