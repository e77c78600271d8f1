package main

import (
	"context"
	"fmt"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/config"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/notification"
	"mpesa-checkout-service/internal/repository"
	"mpesa-checkout-service/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type app struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client

	checkout service.CheckoutService
	orders   service.OrderService
	status   service.StatusService
	callback service.CallbackService
	sweep    *service.SweepService
	relay    *service.NotificationRelay
}

func loadConfig() (*config.Config, error) {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := client.InitDBClient(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := client.Migrate(db); err != nil {
		return nil, err
	}

	rdb, err := client.InitRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		// the status cache is optional
		logger.Warn("redis unavailable, gateway status cache disabled", zap.Error(err))
		rdb = nil
	}

	mailer, err := notification.NewMailer(&cfg.Notification)
	if err != nil {
		return nil, err
	}

	mpesaClient := client.NewMpesaClient(&cfg.Mpesa)

	orderRepo := repository.NewOrderRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	callbackEventRepo := repository.NewCallbackEventRepository(db)
	receiptSeqRepo := repository.NewReceiptSequenceRepository(db)

	recipients := service.Recipients{Staff: cfg.Notification.StaffRecipients()}

	callbackService := service.NewCallbackService(db, orderRepo, outboxRepo, callbackEventRepo, recipients)

	return &app{
		cfg:      cfg,
		db:       db,
		redis:    rdb,
		checkout: service.NewCheckoutService(mpesaClient, orderRepo, outboxRepo, recipients),
		orders:   service.NewOrderService(orderRepo, receiptSeqRepo),
		status:   service.NewStatusService(mpesaClient, orderRepo, service.NewRedisStatusCache(rdb, cfg.Redis.StatusTTL)),
		callback: callbackService,
		sweep:    service.NewSweepService(mpesaClient, orderRepo, callbackService),
		relay: service.NewNotificationRelay(outboxRepo, mailer, service.RelayConfig{
			Workers:      cfg.Notification.RelayWorkers,
			BatchSize:    cfg.Notification.RelayBatchSize,
			PollInterval: cfg.Notification.RelayPollInterval,
			MaxAttempts:  cfg.Notification.RelayMaxAttempts,
		}),
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}
	logger.Sync()
}
