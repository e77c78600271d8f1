package service

import (
	"context"
	"errors"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/notification"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRelay_SendsOutbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createPendingOrder(t, env, "ORD-1")

	mailer := &fakeMailer{}
	relay := NewNotificationRelay(env.outboxRepo, mailer, RelayConfig{BatchSize: 10})

	sent, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	mails := mailer.Sent()
	require.Len(t, mails, 2)
	for _, m := range mails {
		assert.Equal(t, "ORD-1", m.Data["orderNumber"])
		switch m.Template {
		case notification.TemplateOrderConfirmation:
			assert.Equal(t, []string{"jane@clinic.co.ke"}, m.To)
		case notification.TemplateNewOrderStaff:
			assert.Equal(t, env.recipients.Staff, m.To)
		default:
			t.Fatalf("unexpected template %s", m.Template)
		}
	}

	for _, row := range env.outbox(t) {
		assert.Equal(t, model.OutboxSent, row.Status)
	}

	sent, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestNotificationRelay_FailureNeverTouchesOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := createPendingOrder(t, env, "ORD-1")
	require.Equal(t, AckProcessed, env.callback.Reconcile(ctx, callbackBody(order.Payment.CheckoutRequestID, 0)))

	mailer := &fakeMailer{SendFunc: func(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
		return errors.New("smtp: 421 service not available")
	}}
	relay := NewNotificationRelay(env.outboxRepo, mailer, RelayConfig{BatchSize: 10, MaxAttempts: 2})

	for i := 0; i < 2; i++ {
		sent, err := relay.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	}

	rows := env.outbox(t)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, model.OutboxFailed, row.Status)
		assert.Equal(t, 2, row.Attempts)
		assert.Contains(t, row.LastError, "421")
	}

	got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
}

func TestNotificationRelay_StartAndStop(t *testing.T) {
	env := newTestEnv(t)
	createPendingOrder(t, env, "ORD-1")

	mailer := &fakeMailer{}
	relay := NewNotificationRelay(env.outboxRepo, mailer, RelayConfig{Workers: 1, PollInterval: 10 * time.Millisecond})
	stop := relay.Start()

	assert.Eventually(t, func() bool { return len(mailer.Sent()) == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, stop(ctx))
}
