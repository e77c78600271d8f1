package service

import (
	"context"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/notification"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPendingOrder(t *testing.T, env *testEnv, orderNumber string) *model.Order {
	t.Helper()
	ctx := context.Background()

	req := validRequest()
	req.OrderNumber = orderNumber
	_, err := env.checkout.CreateOrder(ctx, req)
	require.NoError(t, err)

	order, err := env.orderRepo.FindByOrderNumber(ctx, orderNumber)
	require.NoError(t, err)
	return order
}

func TestReconcile_SuccessMarksPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")

	ack := env.callback.Reconcile(ctx, callbackBody(order.Payment.CheckoutRequestID, 0))
	assert.Equal(t, AckProcessed, ack)

	got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, model.OrderProcessing, got.OrderStatus)
	assert.Equal(t, "NLJ7RT61SV", got.Payment.MpesaReceiptNumber)
	assert.Equal(t, "254712345678", got.Payment.PaidPhoneNumber)
	require.NotNil(t, got.Payment.TransactionDate)
	assert.True(t, time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC).Equal(*got.Payment.TransactionDate))

	var templates []string
	for _, row := range env.outbox(t) {
		templates = append(templates, row.Template)
	}
	assert.Contains(t, templates, notification.TemplatePaymentConfirmation)
	assert.Contains(t, templates, notification.TemplatePaymentStaff)
}

func TestReconcile_SuccessWithPartialMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")

	body := `{"Body":{"stkCallback":{"MerchantRequestID":"mr","CheckoutRequestID":"` + order.Payment.CheckoutRequestID +
		`","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"ABC123"}]}}}}`

	ack := env.callback.Reconcile(ctx, []byte(body))
	assert.Equal(t, AckProcessed, ack)

	got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, model.OrderProcessing, got.OrderStatus)
	assert.Equal(t, "ABC123", got.Payment.MpesaReceiptNumber)
	assert.Nil(t, got.Payment.TransactionDate)
	assert.Empty(t, got.Payment.PaidPhoneNumber)
}

func TestReconcile_FailureCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")
	before := len(env.outbox(t))

	ack := env.callback.Reconcile(ctx, callbackBody(order.Payment.CheckoutRequestID, 1))
	assert.Equal(t, 0, ack.ResultCode)
	assert.Equal(t, "Callback received and processed", ack.ResultDesc)

	got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCancelled, got.PaymentStatus)
	assert.Equal(t, model.OrderCancelled, got.OrderStatus)
	require.NotNil(t, got.Payment.ResultCode)
	assert.Equal(t, 1, *got.Payment.ResultCode)
	assert.Len(t, env.outbox(t), before)
}

func TestReconcile_UnknownCheckoutID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")

	ack := env.callback.Reconcile(ctx, callbackBody("ws_CO_unknown", 0))
	assert.Equal(t, 1, ack.ResultCode)
	assert.Equal(t, "Order not found", ack.ResultDesc)

	var count int64
	require.NoError(t, env.db.Model(&model.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := env.orderRepo.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestReconcile_InvalidBodies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bodies := []string{
		`not json`,
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
		`{"Body":{"stkCallback":{"ResultCode":0}}}`,
	}
	for _, body := range bodies {
		assert.Equal(t, AckInvalid, env.callback.Reconcile(ctx, []byte(body)), body)
	}

	var events []*model.CallbackEvent
	require.NoError(t, env.db.Find(&events).Error)
	assert.Len(t, events, len(bodies))
	for _, e := range events {
		assert.Equal(t, string(OutcomeInvalid), e.Outcome)
	}
}

func TestReconcile_DuplicateDeliveryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")
	body := callbackBody(order.Payment.CheckoutRequestID, 0)

	require.Equal(t, AckProcessed, env.callback.Reconcile(ctx, body))
	first, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	outboxAfterFirst := len(env.outbox(t))

	assert.Equal(t, AckProcessed, env.callback.Reconcile(ctx, body))
	// a late failure for the same checkout must not undo the payment
	assert.Equal(t, AckProcessed, env.callback.Reconcile(ctx, callbackBody(order.Payment.CheckoutRequestID, 1032)))

	second, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, first.PaymentStatus, second.PaymentStatus)
	assert.Equal(t, first.OrderStatus, second.OrderStatus)
	assert.Equal(t, first.Payment.MpesaReceiptNumber, second.Payment.MpesaReceiptNumber)
	assert.Len(t, env.outbox(t), outboxAfterFirst)

	events, err := env.eventRepo.ListByCheckoutID(ctx, order.Payment.CheckoutRequestID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(OutcomeApplied), events[0].Outcome)
	assert.Equal(t, string(OutcomeDuplicate), events[1].Outcome)
	assert.Equal(t, string(OutcomeDuplicate), events[2].Outcome)
}

func TestApplyResult_StatusPairAlwaysTogether(t *testing.T) {
	for _, code := range []int{0, 1, 1032, 1037, 2001} {
		env := newTestEnv(t)
		ctx := context.Background()
		order := createPendingOrder(t, env, "ORD-1")

		outcome, err := env.callback.ApplyResult(ctx, order.Payment.CheckoutRequestID, code, "desc", nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, outcome)

		got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
		require.NoError(t, err)
		if code == 0 {
			assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
			assert.Equal(t, model.OrderProcessing, got.OrderStatus)
		} else {
			assert.Equal(t, model.PaymentCancelled, got.PaymentStatus)
			assert.Equal(t, model.OrderCancelled, got.OrderStatus)
		}
	}
}
