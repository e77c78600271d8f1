package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StatusService interface {
	QueryOrderStatus(ctx context.Context, reference string) (*dto.OrderStatusResponse, error)
}

type statusServiceImpl struct {
	mpesaClient client.MpesaClient
	orderRepo   repository.OrderRepository
	cache       StatusCache
}

func NewStatusService(mpesaClient client.MpesaClient, orderRepo repository.OrderRepository, cache StatusCache) StatusService {
	return &statusServiceImpl{
		mpesaClient: mpesaClient,
		orderRepo:   orderRepo,
		cache:       cache,
	}
}

// QueryOrderStatus resolves reference as an order number first, then as a
// checkout request id. Gateway problems degrade to the locally known status.
func (s *statusServiceImpl) QueryOrderStatus(ctx context.Context, reference string) (*dto.OrderStatusResponse, error) {
	order, err := s.findOrder(ctx, reference)
	if err != nil {
		return nil, err
	}

	resp := &dto.OrderStatusResponse{
		OrderNumber:   order.OrderNumber,
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		LastUpdated:   order.UpdatedAt,
	}

	checkoutID := order.Payment.CheckoutRequestID
	if checkoutID == "" {
		return resp, nil
	}

	gatewayStatus, err := s.gatewayStatus(ctx, checkoutID)
	if err != nil {
		logger.Warn("mpesa status query failed, returning local status",
			zap.String("order_number", order.OrderNumber),
			zap.String("checkout_request_id", checkoutID),
			zap.Error(err),
		)
		return resp, nil
	}
	resp.GatewayStatus = gatewayStatus

	return resp, nil
}

func (s *statusServiceImpl) findOrder(ctx context.Context, reference string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, reference)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find order by number: %w", err)
	}

	order, err = s.orderRepo.FindByCheckoutID(ctx, nil, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order by checkout id: %w", err)
	}
	return order, nil
}

func (s *statusServiceImpl) gatewayStatus(ctx context.Context, checkoutID string) (json.RawMessage, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, checkoutID)
		if err != nil {
			logger.Warn("status cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	res, err := s.mpesaClient.QueryStatus(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	payload := res.Raw
	if len(payload) == 0 {
		if payload, err = json.Marshal(res); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, checkoutID, payload); err != nil {
			logger.Warn("status cache write failed", zap.Error(err))
		}
	}

	return payload, nil
}
