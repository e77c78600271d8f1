package service

import (
	"context"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/repository"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type SweepReport struct {
	Checked   int
	Settled   int
	Pending   int
	Failed    int
	Unchanged int
}

// SweepService follows up orders whose callback never arrived by asking the
// gateway directly and settling them through the callback path.
type SweepService struct {
	mpesaClient client.MpesaClient
	orderRepo   repository.OrderRepository
	callbacks   CallbackService
	now         func() time.Time
}

func NewSweepService(mpesaClient client.MpesaClient, orderRepo repository.OrderRepository, callbacks CallbackService) *SweepService {
	return &SweepService{
		mpesaClient: mpesaClient,
		orderRepo:   orderRepo,
		callbacks:   callbacks,
		now:         time.Now,
	}
}

func (s *SweepService) Run(ctx context.Context, olderThan time.Duration, limit int) (*SweepReport, error) {
	orders, err := s.orderRepo.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}

	report := &SweepReport{}
	for _, order := range orders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		checkoutID := order.Payment.CheckoutRequestID
		res, err := s.mpesaClient.QueryStatus(ctx, checkoutID)
		if err != nil {
			var rejected *client.GatewayRejectedError
			if errors.As(err, &rejected) {
				// Daraja answers "still being processed" with an error body
				report.Pending++
			} else {
				report.Failed++
			}
			logger.Info("sweep: status not available",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			continue
		}

		if res.ResultCode.String() == "" {
			report.Pending++
			continue
		}
		code, err := strconv.Atoi(res.ResultCode.String())
		if err != nil {
			report.Failed++
			continue
		}

		outcome, err := s.callbacks.ApplyResult(ctx, checkoutID, code, res.ResultDesc, nil)
		switch {
		case err != nil:
			report.Failed++
			logger.Error("sweep: apply result", zap.String("order_number", order.OrderNumber), zap.Error(err))
		case outcome == OutcomeApplied:
			report.Settled++
		default:
			report.Unchanged++
		}
	}

	logger.Info("pending order sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("settled", report.Settled),
		zap.Int("pending", report.Pending),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
