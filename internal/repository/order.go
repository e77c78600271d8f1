package repository

import (
	"context"
	"mpesa-checkout-service/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderFilter struct {
	PaymentStatus model.PaymentStatus
	OrderStatus   model.OrderStatus
	Offset        int
	Limit         int
}

// PaymentResult is the terminal transition written by the callback reconciler.
// PaymentStatus and OrderStatus always travel together.
type PaymentResult struct {
	PaymentStatus      model.PaymentStatus
	OrderStatus        model.OrderStatus
	ResultCode         int
	ResultDesc         string
	MpesaReceiptNumber string
	TransactionDate    *time.Time
	PaidPhoneNumber    string
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	SetCorrelation(ctx context.Context, tx *gorm.DB, orderID, checkoutRequestID, merchantRequestID, phone string) error
	ApplyPaymentResult(ctx context.Context, tx *gorm.DB, checkoutRequestID string, result *PaymentResult) (bool, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindByCheckoutID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*model.Order, error)
	FindByEmail(ctx context.Context, email string) ([]*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*model.Order, int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Order, error)
	AssignReceiptNumber(ctx context.Context, orderID, receiptNumber string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create stores the order with its items.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) SetCorrelation(ctx context.Context, tx *gorm.DB, orderID, checkoutRequestID, merchantRequestID, phone string) error {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_checkout_request_id": checkoutRequestID,
			"payment_merchant_request_id": merchantRequestID,
			"payment_phone_number":        phone,
			"updated_at":                  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ApplyPaymentResult moves a pending order to its terminal pair in a single
// statement. It returns false when no pending order carries checkoutRequestID,
// which covers both unknown ids and orders that were already settled.
func (r *orderRepoImpl) ApplyPaymentResult(ctx context.Context, tx *gorm.DB, checkoutRequestID string, result *PaymentResult) (bool, error) {
	updates := map[string]interface{}{
		"payment_status":      result.PaymentStatus,
		"order_status":        result.OrderStatus,
		"payment_result_code": result.ResultCode,
		"payment_result_desc": result.ResultDesc,
		"updated_at":          time.Now(),
	}
	if result.MpesaReceiptNumber != "" {
		updates["payment_mpesa_receipt_number"] = result.MpesaReceiptNumber
	}
	if result.TransactionDate != nil {
		updates["payment_transaction_date"] = *result.TransactionDate
	}
	if result.PaidPhoneNumber != "" {
		updates["payment_paid_phone_number"] = result.PaidPhoneNumber
	}

	res := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where(`
			payment_checkout_request_id = ?
			AND payment_status = ?
		`,
			checkoutRequestID,
			model.PaymentPending,
		).
		Updates(updates)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepoImpl) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("order_number = ?", orderNumber).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByCheckoutID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*model.Order, error) {
	var order model.Order
	err := r.conn(tx).WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("payment_checkout_request_id = ?", checkoutRequestID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// FindByEmail matches either the primary or the alternative contact.
func (r *orderRepoImpl) FindByEmail(ctx context.Context, email string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("primary_email = ? OR alternative_email = ?", email, email).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) List(ctx context.Context, filter OrderFilter) ([]*model.Order, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Order{})
		if filter.PaymentStatus != "" {
			q = q.Where("payment_status = ?", filter.PaymentStatus)
		}
		if filter.OrderStatus != "" {
			q = q.Where("order_status = ?", filter.OrderStatus)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*model.Order
	err := scoped().
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListStalePending returns pending orders that reached the gateway but have
// not been settled by a callback before createdBefore.
func (r *orderRepoImpl) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", model.PaymentPending).
		Where("payment_checkout_request_id <> ''").
		Where("created_at < ?", createdBefore).
		Order("created_at").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// AssignReceiptNumber sets the receipt number only if none is stored yet.
func (r *orderRepoImpl) AssignReceiptNumber(ctx context.Context, orderID, receiptNumber string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND receipt_number = ''", orderID).
		Updates(map[string]interface{}{
			"receipt_number": receiptNumber,
			"updated_at":     time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
