package repository

import (
	"context"
	"mpesa-checkout-service/internal/model"

	"gorm.io/gorm"
)

type CallbackEventRepository interface {
	Record(ctx context.Context, event *model.CallbackEvent) error
	ListByCheckoutID(ctx context.Context, checkoutRequestID string) ([]*model.CallbackEvent, error)
}

type callbackEventRepositoryImpl struct {
	db *gorm.DB
}

func NewCallbackEventRepository(db *gorm.DB) CallbackEventRepository {
	return &callbackEventRepositoryImpl{db: db}
}

func (r *callbackEventRepositoryImpl) Record(ctx context.Context, event *model.CallbackEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *callbackEventRepositoryImpl) ListByCheckoutID(ctx context.Context, checkoutRequestID string) ([]*model.CallbackEvent, error) {
	var events []*model.CallbackEvent
	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		Order("id").
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}
