package service

import (
	"context"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/repository"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

type fakeMpesaClient struct {
	AcquireAccessTokenFunc func(ctx context.Context) (string, error)
	InitiatePushFunc       func(ctx context.Context, phoneNumber string, amount float64, orderReference, description string) (*client.PushResult, error)
	QueryStatusFunc        func(ctx context.Context, checkoutID string) (*client.StkQueryResponse, error)

	mu            sync.Mutex
	pushCalls     int
	queryCalls    int
	lastPhone     string
	lastAmount    float64
	lastReference string
}

func (f *fakeMpesaClient) AcquireAccessToken(ctx context.Context) (string, error) {
	if f.AcquireAccessTokenFunc != nil {
		return f.AcquireAccessTokenFunc(ctx)
	}
	return "token", nil
}

func (f *fakeMpesaClient) InitiatePush(ctx context.Context, phoneNumber string, amount float64, orderReference, description string) (*client.PushResult, error) {
	f.mu.Lock()
	f.pushCalls++
	f.lastPhone, f.lastAmount, f.lastReference = phoneNumber, amount, orderReference
	f.mu.Unlock()

	if f.InitiatePushFunc != nil {
		return f.InitiatePushFunc(ctx, phoneNumber, amount, orderReference, description)
	}
	return &client.PushResult{
		CheckoutRequestID: "ws_CO_" + orderReference,
		MerchantRequestID: "mr_" + orderReference,
	}, nil
}

func (f *fakeMpesaClient) QueryStatus(ctx context.Context, checkoutID string) (*client.StkQueryResponse, error) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()

	if f.QueryStatusFunc != nil {
		return f.QueryStatusFunc(ctx, checkoutID)
	}
	return nil, client.ErrGatewayUnreachable
}

type sentMail struct {
	To       []string
	Template string
	Data     map[string]interface{}
}

type fakeMailer struct {
	SendFunc func(ctx context.Context, to []string, templateName string, data map[string]interface{}) error

	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	if f.SendFunc != nil {
		if err := f.SendFunc(ctx, to, templateName, data); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Template: templateName, Data: data})
	return nil
}

func (f *fakeMailer) Sent() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type testEnv struct {
	db         *gorm.DB
	mpesa      *fakeMpesaClient
	orderRepo  repository.OrderRepository
	outboxRepo repository.OutboxRepository
	eventRepo  repository.CallbackEventRepository
	recipients Recipients

	checkout CheckoutService
	callback CallbackService
	orders   OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	env := &testEnv{
		db:         db,
		mpesa:      &fakeMpesaClient{},
		orderRepo:  repository.NewOrderRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		eventRepo:  repository.NewCallbackEventRepository(db),
		recipients: Recipients{Staff: []string{"admin@supplies.co.ke", "ops@supplies.co.ke"}},
	}
	env.checkout = NewCheckoutService(env.mpesa, env.orderRepo, env.outboxRepo, env.recipients)
	env.callback = NewCallbackService(db, env.orderRepo, env.outboxRepo, env.eventRepo, env.recipients)
	env.orders = NewOrderService(env.orderRepo, repository.NewReceiptSequenceRepository(db))
	return env
}

func (e *testEnv) outbox(t *testing.T) []*model.NotificationOutbox {
	t.Helper()
	var rows []*model.NotificationOutbox
	require.NoError(t, e.db.Order("created_at, template").Find(&rows).Error)
	return rows
}

func validRequest() *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		PrimaryContact: &dto.PrimaryContact{
			Name:     "Jane Wanjiku",
			Email:    "Jane@Clinic.co.ke",
			Phone:    "254712345678",
			JobTitle: "Procurement Officer",
		},
		Facility: &dto.Facility{
			Name:        "Umoja Health Centre",
			Type:        "clinic",
			Address:     "Moi Avenue 12",
			City:        "Nairobi",
			County:      "Nairobi",
			Coordinates: &dto.Coordinates{Latitude: -1.2833, Longitude: 36.8167},
		},
		AlternativeContact: &dto.AlternativeContact{
			Name:         "Peter Otieno",
			Email:        "peter@clinic.co.ke",
			Phone:        "254722000111",
			Relationship: "Pharmacist",
		},
		Items: []dto.Item{
			{CatalogItemID: "glucometer", Name: "Glucometer", Quantity: 2, Price: 1500},
			{CatalogItemID: "strips-50", Name: "Test strips", Quantity: 1, Price: 800},
		},
		TotalAmount: 3800,
	}
}

func callbackBody(checkoutID string, resultCode int) []byte {
	if resultCode != 0 {
		return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"mr","CheckoutRequestID":"` + checkoutID + `","ResultCode":` +
			strconv.Itoa(resultCode) + `,"ResultDesc":"Request cancelled by user"}}}`)
	}
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"mr","CheckoutRequestID":"` + checkoutID + `","ResultCode":0,` +
		`"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[` +
		`{"Name":"Amount","Value":3800},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},` +
		`{"Name":"TransactionDate","Value":20240301123015},{"Name":"PhoneNumber","Value":254712345678}]}}}}`)
}
