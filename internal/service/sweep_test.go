package service

import (
	"context"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_SettlesStalePendingOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, number := range []string{"ORD-paid", "ORD-cancelled", "ORD-processing", "ORD-down"} {
		createPendingOrder(t, env, number)
	}

	env.mpesa.QueryStatusFunc = func(ctx context.Context, checkoutID string) (*client.StkQueryResponse, error) {
		switch checkoutID {
		case "ws_CO_ORD-paid":
			return &client.StkQueryResponse{ResultCode: "0", ResultDesc: "The service request is processed successfully."}, nil
		case "ws_CO_ORD-cancelled":
			return &client.StkQueryResponse{ResultCode: "1032", ResultDesc: "Request cancelled by user"}, nil
		case "ws_CO_ORD-processing":
			return nil, &client.GatewayRejectedError{Code: "500.001.1001", Message: "The transaction is being processed"}
		default:
			return nil, client.ErrGatewayUnreachable
		}
	}

	sweep := NewSweepService(env.mpesa, env.orderRepo, env.callback)
	sweep.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := sweep.Run(ctx, 10*time.Minute, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 2, report.Settled)
	assert.Equal(t, 1, report.Pending)
	assert.Equal(t, 1, report.Failed)

	expect := map[string]model.PaymentStatus{
		"ORD-paid":       model.PaymentPaid,
		"ORD-cancelled":  model.PaymentCancelled,
		"ORD-processing": model.PaymentPending,
		"ORD-down":       model.PaymentPending,
	}
	for number, status := range expect {
		got, err := env.orderRepo.FindByOrderNumber(ctx, number)
		require.NoError(t, err)
		assert.Equal(t, status, got.PaymentStatus, number)
	}
}

func TestSweep_IgnoresFreshOrders(t *testing.T) {
	env := newTestEnv(t)
	createPendingOrder(t, env, "ORD-1")

	sweep := NewSweepService(env.mpesa, env.orderRepo, env.callback)
	report, err := sweep.Run(context.Background(), 10*time.Minute, 50)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Equal(t, 0, env.mpesa.queryCalls)
}
