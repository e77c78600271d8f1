package model

import (
	"time"

	"gorm.io/datatypes"
)

// CallbackEvent is an audit row for every gateway callback delivery.
type CallbackEvent struct {
	ID                uint   `gorm:"primaryKey"`
	CheckoutRequestID string `gorm:"size:64;index"`
	MerchantRequestID string `gorm:"size:64"`
	ResultCode        *int
	ResultDesc        string `gorm:"size:255"`
	Outcome           string `gorm:"size:32;index"` // applied, duplicate, unmatched, invalid, error
	Payload           datatypes.JSON
	CreatedAt         time.Time
}

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
)

// NotificationOutbox is a notification committed together with the order
// transition that caused it and dispatched later by the relay.
type NotificationOutbox struct {
	ID          string `gorm:"primaryKey;size:36;not null"`
	OrderID     string `gorm:"size:36;index;not null"`
	Template    string `gorm:"size:64;not null"`
	Recipients  datatypes.JSONSlice[string]
	Data        datatypes.JSON
	Status      OutboxStatus `gorm:"size:16;index;not null"`
	Attempts    int          `gorm:"not null;default:0"`
	LastError   string       `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"index"`
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }

// ReceiptSequence is a per-year counter backing receipt numbers.
type ReceiptSequence struct {
	Year      int   `gorm:"primaryKey;autoIncrement:false"`
	Value     int64 `gorm:"not null"`
	UpdatedAt time.Time
}

// AllModels lists every table owned by the service.
func AllModels() []interface{} {
	return []interface{}{
		&Order{},
		&OrderItem{},
		&CallbackEvent{},
		&NotificationOutbox{},
		&ReceiptSequence{},
	}
}
