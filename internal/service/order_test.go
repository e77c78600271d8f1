package service

import (
	"context"
	"fmt"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/repository"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payOrder(t *testing.T, env *testEnv, orderNumber string) {
	t.Helper()
	order, err := env.orderRepo.FindByOrderNumber(context.Background(), orderNumber)
	require.NoError(t, err)
	require.Equal(t, AckProcessed, env.callback.Reconcile(context.Background(), callbackBody(order.Payment.CheckoutRequestID, 0)))
}

func TestReceipt_IssuedOnceForPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createPendingOrder(t, env, "ORD-1")

	svc := env.orders.(*orderServiceImpl)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	_, err := svc.Receipt(ctx, "ORD-1")
	assert.ErrorIs(t, err, ErrReceiptUnavailable)

	payOrder(t, env, "ORD-1")

	first, err := svc.Receipt(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "RCP-2024-000001", first.ReceiptNumber)
	assert.Equal(t, "NLJ7RT61SV", first.MpesaReceiptNumber)
	assert.Equal(t, "Umoja Health Centre", first.FacilityName)
	assert.Len(t, first.Items, 2)
	assert.EqualValues(t, 3800, first.TotalAmount)

	second, err := svc.Receipt(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
}

func TestReceipt_SequenceAcrossOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		number := fmt.Sprintf("ORD-%d", i)
		createPendingOrder(t, env, number)
		payOrder(t, env, number)
	}

	year := time.Now().Year()
	for i := 1; i <= 3; i++ {
		r, err := env.orders.Receipt(ctx, fmt.Sprintf("ORD-%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("RCP-%d-%06d", year, i), r.ReceiptNumber)
	}
}

func TestReceipt_ConcurrentFirstReadsConverge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createPendingOrder(t, env, "ORD-1")
	payOrder(t, env, "ORD-1")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]struct{}{}
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := env.orders.Receipt(ctx, "ORD-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[r.ReceiptNumber] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, 1)
}

func TestReceipt_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.Receipt(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createPendingOrder(t, env, "ORD-1")

	got, err := env.orders.GetOrder(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.OrderID)
	assert.Equal(t, "pending", got.PaymentStatus)
	assert.Equal(t, created.Payment.CheckoutRequestID, got.Payment.CheckoutRequestID)
	require.NotNil(t, got.Facility.Coordinates)

	_, err = env.orders.GetOrder(ctx, "ORD-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCustomerOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createPendingOrder(t, env, "ORD-1")
	createPendingOrder(t, env, "ORD-2")

	orders, err := env.orders.ListCustomerOrders(ctx, " JANE@clinic.co.ke ")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = env.orders.ListCustomerOrders(ctx, "peter@clinic.co.ke")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = env.orders.ListCustomerOrders(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = env.orders.ListCustomerOrders(ctx, "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		createPendingOrder(t, env, fmt.Sprintf("ORD-%d", i))
	}
	payOrder(t, env, "ORD-2")

	res, err := env.orders.ListOrders(ctx, dto.ListOrdersQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.Pages)
	assert.Len(t, res.Orders, 2)

	res, err = env.orders.ListOrders(ctx, dto.ListOrdersQuery{PaymentStatus: "paid"})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "ORD-2", res.Orders[0].OrderNumber)
	assert.Equal(t, 20, res.Pagination.Limit)

	res, err = env.orders.ListOrders(ctx, dto.ListOrdersQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Pagination.Limit)

	_, err = env.orders.ListOrders(ctx, dto.ListOrdersQuery{OrderStatus: "lost"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "orderStatus", verr.Field)
}

// receipt sequence failures must not leave a half-issued receipt
func TestReceipt_SequenceErrorSurfaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createPendingOrder(t, env, "ORD-1")
	payOrder(t, env, "ORD-1")

	svc := NewOrderService(env.orderRepo, failingSequence{}).(*orderServiceImpl)
	_, err := svc.Receipt(ctx, "ORD-1")
	assert.Error(t, err)

	got, err := env.orderRepo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Empty(t, got.ReceiptNumber)
}

type failingSequence struct{}

func (failingSequence) Next(ctx context.Context, year int) (int64, error) {
	return 0, fmt.Errorf("sequence table locked")
}

var _ repository.ReceiptSequenceRepository = failingSequence{}
