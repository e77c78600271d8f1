package service

import (
	"context"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maximum accepted difference between the submitted total and the item sum
var amountTolerance = decimal.RequireFromString("0.01")

var checkoutNextSteps = []string{
	"Check your phone for the M-Pesa payment prompt",
	"Enter your M-Pesa PIN to authorize the payment",
	"A confirmation email will be sent once the payment is received",
}

type CheckoutService interface {
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*dto.CreateOrderResponse, error)
}

type checkoutServiceImpl struct {
	mpesaClient client.MpesaClient
	orderRepo   repository.OrderRepository
	outboxRepo  repository.OutboxRepository
	validator   *RequestValidator
	recipients  Recipients
	now         func() time.Time
}

func NewCheckoutService(
	mpesaClient client.MpesaClient,
	orderRepo repository.OrderRepository,
	outboxRepo repository.OutboxRepository,
	recipients Recipients,
) CheckoutService {
	return &checkoutServiceImpl{
		mpesaClient: mpesaClient,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		validator:   NewRequestValidator(),
		recipients:  recipients,
		now:         time.Now,
	}
}

func (s *checkoutServiceImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*dto.CreateOrderResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	total := decimal.NewFromFloat(req.TotalAmount)
	if err := checkAmount(req.Items, total); err != nil {
		return nil, err
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	if orderNumber == "" {
		orderNumber = s.generateOrderNumber()
	}

	order := buildOrder(orderNumber, req, total)

	// the pending order is the audit record, it must exist before the push
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateOrderNumber
		}
		return nil, fmt.Errorf("store order in db: %w", err)
	}

	phone := order.PrimaryContact.Phone
	push, err := s.mpesaClient.InitiatePush(ctx, phone, total.InexactFloat64(), orderNumber, "Order "+orderNumber)
	if err != nil {
		logger.Error("mpesa push failed, order left pending",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		return nil, &PushFailedError{OrderNumber: orderNumber, Err: err}
	}

	order.Payment.CheckoutRequestID = push.CheckoutRequestID
	order.Payment.MerchantRequestID = push.MerchantRequestID
	order.Payment.PhoneNumber = phone

	// the push already went out, so neither write below may fail the request
	if err := s.orderRepo.SetCorrelation(ctx, nil, order.ID, push.CheckoutRequestID, push.MerchantRequestID, phone); err != nil {
		logger.Error("store correlation ids failed",
			zap.String("order_number", orderNumber),
			zap.String("checkout_request_id", push.CheckoutRequestID),
			zap.Error(err),
		)
	}
	if err := s.outboxRepo.Enqueue(ctx, nil, orderCreatedNotifications(order, s.recipients)); err != nil {
		logger.Error("enqueue order notifications failed",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
	}

	logger.Info("order created",
		zap.String("order_number", orderNumber),
		zap.String("checkout_request_id", push.CheckoutRequestID),
		zap.String("total", total.StringFixed(2)),
	)

	return &dto.CreateOrderResponse{
		OrderID:            orderNumber,
		Facility:           toFacilityDTO(order.Facility),
		PrimaryContact:     toPrimaryContactDTO(order.PrimaryContact),
		AlternativeContact: toAlternativeContactDTO(order.AlternativeContact),
		TotalAmount:        total.InexactFloat64(),
		ItemCount:          len(order.Items),
		PaymentStatus:      string(order.PaymentStatus),
		CheckoutRequestID:  push.CheckoutRequestID,
		NextSteps:          checkoutNextSteps,
	}, nil
}

// checkAmount rejects totals that differ from Σ quantity×price by more than the tolerance.
func checkAmount(items []dto.Item, total decimal.Decimal) error {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt32(item.Quantity)))
	}

	if sum.Sub(total).Abs().GreaterThan(amountTolerance) {
		return &ValidationError{
			Field:   "totalAmount",
			Message: fmt.Sprintf("amount mismatch: items add up to %s but totalAmount is %s", sum.StringFixed(2), total.StringFixed(2)),
		}
	}
	return nil
}

func (s *checkoutServiceImpl) generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%d-%s", s.now().UnixMilli(), suffix)
}

func buildOrder(orderNumber string, req *dto.CreateOrderRequest, total decimal.Decimal) *model.Order {
	orderID := uuid.NewString()

	items := make([]model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = model.OrderItem{
			OrderID:       orderID,
			Position:      i,
			CatalogItemID: item.CatalogItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     decimal.NewFromFloat(item.Price),
			Specification: item.Specification,
		}
	}

	facility := model.Facility{
		Name:    req.Facility.Name,
		Type:    req.Facility.Type,
		Address: req.Facility.Address,
		City:    req.Facility.City,
		County:  req.Facility.County,
	}
	if c := req.Facility.Coordinates; c != nil {
		lat, lng := c.Latitude, c.Longitude
		facility.Latitude = &lat
		facility.Longitude = &lng
	}

	return &model.Order{
		ID:          orderID,
		OrderNumber: orderNumber,
		PrimaryContact: model.PrimaryContact{
			Name:     req.PrimaryContact.Name,
			Email:    strings.ToLower(req.PrimaryContact.Email),
			Phone:    req.PrimaryContact.Phone,
			JobTitle: req.PrimaryContact.JobTitle,
		},
		Facility: facility,
		AlternativeContact: model.AlternativeContact{
			Name:         req.AlternativeContact.Name,
			Email:        strings.ToLower(req.AlternativeContact.Email),
			Phone:        req.AlternativeContact.Phone,
			Relationship: req.AlternativeContact.Relationship,
		},
		Items:         items,
		TotalAmount:   total.Round(2),
		Currency:      model.CurrencyKES,
		PaymentMethod: model.PaymentMethodMpesa,
		PaymentStatus: model.PaymentPending,
		OrderStatus:   model.OrderPending,
	}
}
