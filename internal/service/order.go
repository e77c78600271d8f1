package service

import (
	"context"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/repository"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderService interface {
	GetOrder(ctx context.Context, orderNumber string) (*dto.Order, error)
	ListCustomerOrders(ctx context.Context, email string) ([]*dto.Order, error)
	ListOrders(ctx context.Context, query dto.ListOrdersQuery) (*dto.ListOrdersResponse, error)
	Receipt(ctx context.Context, orderNumber string) (*dto.Receipt, error)
}

type orderServiceImpl struct {
	orderRepo      repository.OrderRepository
	receiptSeqRepo repository.ReceiptSequenceRepository
	now            func() time.Time
}

func NewOrderService(orderRepo repository.OrderRepository, receiptSeqRepo repository.ReceiptSequenceRepository) OrderService {
	return &orderServiceImpl{
		orderRepo:      orderRepo,
		receiptSeqRepo: receiptSeqRepo,
		now:            time.Now,
	}
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderNumber string) (*dto.Order, error) {
	order, err := s.find(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (s *orderServiceImpl) ListCustomerOrders(ctx context.Context, email string) ([]*dto.Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}

	orders, err := s.orderRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find orders by email: %w", err)
	}
	return toOrderDTOs(orders), nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, query dto.ListOrdersQuery) (*dto.ListOrdersResponse, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := repository.OrderFilter{
		Offset: (page - 1) * limit,
		Limit:  limit,
	}

	if query.PaymentStatus != "" {
		ps := model.PaymentStatus(query.PaymentStatus)
		switch ps {
		case model.PaymentPending, model.PaymentPaid, model.PaymentPartial, model.PaymentOverdue, model.PaymentCancelled:
			filter.PaymentStatus = ps
		default:
			return nil, &ValidationError{Field: "paymentStatus", Message: fmt.Sprintf("unknown payment status %q", query.PaymentStatus)}
		}
	}
	if query.OrderStatus != "" {
		st := model.OrderStatus(query.OrderStatus)
		switch st {
		case model.OrderPending, model.OrderProcessing, model.OrderShipped, model.OrderDelivered, model.OrderCancelled:
			filter.OrderStatus = st
		default:
			return nil, &ValidationError{Field: "orderStatus", Message: fmt.Sprintf("unknown order status %q", query.OrderStatus)}
		}
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &dto.ListOrdersResponse{
		Orders: toOrderDTOs(orders),
		Pagination: dto.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// Receipt assigns a receipt number on the first read of a paid order and
// returns the same number on every later read.
func (s *orderServiceImpl) Receipt(ctx context.Context, orderNumber string) (*dto.Receipt, error) {
	order, err := s.find(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != model.PaymentPaid {
		return nil, ErrReceiptUnavailable
	}

	if order.ReceiptNumber == "" {
		if err := s.assignReceiptNumber(ctx, order); err != nil {
			return nil, err
		}
	}

	return &dto.Receipt{
		ReceiptNumber:      order.ReceiptNumber,
		OrderNumber:        order.OrderNumber,
		FacilityName:       order.Facility.Name,
		CustomerName:       order.PrimaryContact.Name,
		CustomerEmail:      order.PrimaryContact.Email,
		Items:              toItemDTOs(order.Items),
		TotalAmount:        order.TotalAmount.InexactFloat64(),
		Currency:           order.Currency,
		MpesaReceiptNumber: order.Payment.MpesaReceiptNumber,
		PaidAt:             order.Payment.TransactionDate,
		IssuedAt:           s.now(),
	}, nil
}

func (s *orderServiceImpl) assignReceiptNumber(ctx context.Context, order *model.Order) error {
	year := s.now().Year()
	seq, err := s.receiptSeqRepo.Next(ctx, year)
	if err != nil {
		return fmt.Errorf("next receipt sequence: %w", err)
	}
	number := fmt.Sprintf("RCP-%d-%06d", year, seq)

	assigned, err := s.orderRepo.AssignReceiptNumber(ctx, order.ID, number)
	if err != nil {
		return fmt.Errorf("store receipt number: %w", err)
	}
	if assigned {
		order.ReceiptNumber = number
		logger.Info("receipt issued",
			zap.String("order_number", order.OrderNumber),
			zap.String("receipt_number", number),
		)
		return nil
	}

	// a concurrent request stored its number first
	current, err := s.find(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	order.ReceiptNumber = current.ReceiptNumber
	return nil
}

func (s *orderServiceImpl) find(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}
