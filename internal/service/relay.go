package service

import (
	"context"
	"encoding/json"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/notification"
	"mpesa-checkout-service/internal/repository"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	sendTimeout     = 30 * time.Second
	stuckClaimAfter = 5 * time.Minute
)

type RelayConfig struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// NotificationRelay drains the notification outbox. Sending happens outside
// the transactions that enqueued the rows, so a mail failure never reverts
// an order or payment transition.
type NotificationRelay struct {
	outboxRepo repository.OutboxRepository
	mailer     notification.Mailer
	cfg        RelayConfig
}

func NewNotificationRelay(outboxRepo repository.OutboxRepository, mailer notification.Mailer, cfg RelayConfig) *NotificationRelay {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &NotificationRelay{outboxRepo: outboxRepo, mailer: mailer, cfg: cfg}
}

// Start launches the workers and returns a stop function that waits for
// in-flight sends to finish or ctx to expire.
func (r *NotificationRelay) Start() func(context.Context) error {
	if n, err := r.outboxRepo.RequeueStuck(context.Background(), time.Now().Add(-stuckClaimAfter)); err != nil {
		logger.Warn("requeue stuck notifications", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued stuck notifications", zap.Int64("count", n))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(stop)
		}()
	}

	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *NotificationRelay) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(context.Background()); err != nil {
				logger.Warn("notification relay pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce claims one batch and tries to send each entry. It returns the
// number of notifications sent.
func (r *NotificationRelay) ProcessOnce(ctx context.Context) (int, error) {
	entries, err := r.outboxRepo.ClaimPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, entry := range entries {
		var data map[string]interface{}
		if len(entry.Data) > 0 {
			if err := json.Unmarshal(entry.Data, &data); err != nil {
				r.fail(ctx, entry.ID, entry.Template, err)
				continue
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := r.mailer.Send(sendCtx, []string(entry.Recipients), entry.Template, data)
		cancel()
		if err != nil {
			r.fail(ctx, entry.ID, entry.Template, err)
			continue
		}

		if err := r.outboxRepo.MarkSent(ctx, entry.ID); err != nil {
			logger.Warn("mark notification sent", zap.String("id", entry.ID), zap.Error(err))
			continue
		}
		sent++
	}

	return sent, nil
}

func (r *NotificationRelay) fail(ctx context.Context, id, templateName string, cause error) {
	logger.Warn("notification send failed",
		zap.String("id", id),
		zap.String("template", templateName),
		zap.Error(cause),
	)
	if err := r.outboxRepo.MarkAttemptFailed(ctx, id, cause.Error(), r.cfg.MaxAttempts); err != nil {
		logger.Error("record notification failure", zap.String("id", id), zap.Error(err))
	}
}
