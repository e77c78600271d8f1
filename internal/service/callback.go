package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate" // order already settled, nothing changed
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeError     Outcome = "error"
)

var (
	AckProcessed = dto.CallbackAck{ResultCode: 0, ResultDesc: "Callback received and processed"}
	AckNotFound  = dto.CallbackAck{ResultCode: 1, ResultDesc: "Order not found"}
	AckInvalid   = dto.CallbackAck{ResultCode: 1, ResultDesc: "Invalid callback data"}
	AckError     = dto.CallbackAck{ResultCode: 1, ResultDesc: "Internal error"}
)

type CallbackService interface {
	// Reconcile never fails; every outcome maps to an acknowledgement.
	Reconcile(ctx context.Context, body []byte) dto.CallbackAck
	// ApplyResult settles a pending order from a gateway result. It is also
	// used by the pending-order sweep with metadata set to nil.
	ApplyResult(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string, metadata *model.CallbackMetadata) (Outcome, error)
}

type callbackServiceImpl struct {
	db                *gorm.DB
	orderRepo         repository.OrderRepository
	outboxRepo        repository.OutboxRepository
	callbackEventRepo repository.CallbackEventRepository
	recipients        Recipients
}

func NewCallbackService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	outboxRepo repository.OutboxRepository,
	callbackEventRepo repository.CallbackEventRepository,
	recipients Recipients,
) CallbackService {
	return &callbackServiceImpl{
		db:                db,
		orderRepo:         orderRepo,
		outboxRepo:        outboxRepo,
		callbackEventRepo: callbackEventRepo,
		recipients:        recipients,
	}
}

func (s *callbackServiceImpl) Reconcile(ctx context.Context, body []byte) dto.CallbackAck {
	var envelope model.StkCallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil ||
		envelope.Body == nil ||
		envelope.Body.StkCallback == nil ||
		envelope.Body.StkCallback.ResultCode == nil ||
		envelope.Body.StkCallback.CheckoutRequestID == "" {
		logger.Warn("invalid mpesa callback", zap.ByteString("body", truncateBytes(body, 512)))
		s.audit(ctx, nil, body, OutcomeInvalid)
		return AckInvalid
	}

	cb := envelope.Body.StkCallback
	outcome, err := s.ApplyResult(ctx, cb.CheckoutRequestID, *cb.ResultCode, cb.ResultDesc, cb.CallbackMetadata)
	s.audit(ctx, cb, body, outcome)

	switch outcome {
	case OutcomeApplied, OutcomeDuplicate:
		return AckProcessed
	case OutcomeUnmatched:
		logger.Warn("mpesa callback for unknown checkout id",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
		)
		return AckNotFound
	default:
		logger.Error("mpesa callback processing failed",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err),
		)
		return AckError
	}
}

func (s *callbackServiceImpl) ApplyResult(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string, metadata *model.CallbackMetadata) (Outcome, error) {
	outcome := OutcomeApplied

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByCheckoutID(ctx, tx, checkoutRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeUnmatched
				return nil
			}
			return fmt.Errorf("find order by checkout id: %w", err)
		}

		if order.IsTerminal() {
			outcome = OutcomeDuplicate
			logger.Info("mpesa result for settled order ignored",
				zap.String("order_number", order.OrderNumber),
				zap.String("payment_status", string(order.PaymentStatus)),
				zap.Int("result_code", resultCode),
			)
			return nil
		}

		result := paymentResultFrom(resultCode, resultDesc, metadata)
		applied, err := s.orderRepo.ApplyPaymentResult(ctx, tx, checkoutRequestID, result)
		if err != nil {
			return fmt.Errorf("apply payment result: %w", err)
		}
		if !applied {
			// settled concurrently between the read and the conditional update
			outcome = OutcomeDuplicate
			return nil
		}

		if result.PaymentStatus == model.PaymentPaid {
			order.PaymentStatus = result.PaymentStatus
			order.OrderStatus = result.OrderStatus
			order.Payment.MpesaReceiptNumber = result.MpesaReceiptNumber
			order.Payment.TransactionDate = result.TransactionDate
			order.Payment.PaidPhoneNumber = result.PaidPhoneNumber

			if err := s.outboxRepo.Enqueue(ctx, tx, paymentReceivedNotifications(order, s.recipients)); err != nil {
				return fmt.Errorf("enqueue payment notifications: %w", err)
			}
		}

		logger.Info("mpesa payment result applied",
			zap.String("order_number", order.OrderNumber),
			zap.String("payment_status", string(result.PaymentStatus)),
			zap.Int("result_code", resultCode),
		)
		return nil
	})
	if err != nil {
		return OutcomeError, err
	}

	return outcome, nil
}

// paymentResultFrom maps a gateway result to the terminal status pair.
// Metadata fields are optional; a missing one is simply left unset.
func paymentResultFrom(resultCode int, resultDesc string, metadata *model.CallbackMetadata) *repository.PaymentResult {
	if resultCode != model.MpesaResultSuccess {
		return &repository.PaymentResult{
			PaymentStatus: model.PaymentCancelled,
			OrderStatus:   model.OrderCancelled,
			ResultCode:    resultCode,
			ResultDesc:    resultDesc,
		}
	}

	result := &repository.PaymentResult{
		PaymentStatus: model.PaymentPaid,
		OrderStatus:   model.OrderProcessing,
		ResultCode:    resultCode,
		ResultDesc:    resultDesc,
	}
	if receipt, ok := metadata.String(model.MetaReceiptNumber); ok {
		result.MpesaReceiptNumber = receipt
	}
	if at, ok := metadata.Time(model.MetaTransactionDate); ok {
		result.TransactionDate = at
	}
	if phone, ok := metadata.String(model.MetaPhoneNumber); ok {
		result.PaidPhoneNumber = phone
	}
	return result
}

func (s *callbackServiceImpl) audit(ctx context.Context, cb *model.StkCallback, body []byte, outcome Outcome) {
	event := &model.CallbackEvent{Outcome: string(outcome)}
	if json.Valid(body) {
		event.Payload = datatypes.JSON(body)
	}
	if cb != nil {
		event.CheckoutRequestID = cb.CheckoutRequestID
		event.MerchantRequestID = cb.MerchantRequestID
		event.ResultCode = cb.ResultCode
		event.ResultDesc = cb.ResultDesc
	}

	if err := s.callbackEventRepo.Record(ctx, event); err != nil {
		logger.Warn("record mpesa callback event", zap.Error(err))
	}
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
