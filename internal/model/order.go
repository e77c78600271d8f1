package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentPartial   PaymentStatus = "partial"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentCancelled PaymentStatus = "cancelled"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

const (
	CurrencyKES        = "KES"
	PaymentMethodMpesa = "mpesa"
)

type PrimaryContact struct {
	Name     string `gorm:"size:128;not null"`
	Email    string `gorm:"size:254;index;not null"`
	Phone    string `gorm:"size:16;not null"`
	JobTitle string `gorm:"size:128;not null"`
}

type Facility struct {
	Name      string `gorm:"size:255;not null"`
	Type      string `gorm:"size:64;not null"` // hospital, clinic, laboratory, ...
	Address   string `gorm:"size:255;not null"`
	City      string `gorm:"size:128;not null"`
	County    string `gorm:"size:128;not null"`
	Latitude  *float64
	Longitude *float64
}

type AlternativeContact struct {
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"size:254;index;not null"`
	Phone        string `gorm:"size:16;not null"`
	Relationship string `gorm:"size:64;not null"`
}

// Payment holds the gateway correlation ids set at push time and the
// fields reconciled from the callback.
type Payment struct {
	CheckoutRequestID  string `gorm:"size:64;index"`
	MerchantRequestID  string `gorm:"size:64"`
	PhoneNumber        string `gorm:"size:16"` // phone the push was sent to
	MpesaReceiptNumber string `gorm:"size:32"`
	TransactionDate    *time.Time
	PaidPhoneNumber    string `gorm:"size:16"` // phone that actually paid
	ResultCode         *int
	ResultDesc         string `gorm:"size:255"`
}

type Order struct {
	ID          string `gorm:"primaryKey;size:36;not null"` // uuid
	OrderNumber string `gorm:"size:64;uniqueIndex;not null"`

	PrimaryContact     PrimaryContact     `gorm:"embedded;embeddedPrefix:primary_"`
	Facility           Facility           `gorm:"embedded;embeddedPrefix:facility_"`
	AlternativeContact AlternativeContact `gorm:"embedded;embeddedPrefix:alternative_"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`

	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Currency      string          `gorm:"size:8;not null"`
	PaymentMethod string          `gorm:"size:16;not null"`

	Payment Payment `gorm:"embedded;embeddedPrefix:payment_"`

	PaymentStatus PaymentStatus `gorm:"size:16;index;not null"`
	OrderStatus   OrderStatus   `gorm:"size:16;index;not null"`

	ReceiptNumber string `gorm:"size:32"` // assigned on first receipt read of a paid order

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK -> orders.id
	OrderID       string          `gorm:"size:36;index;not null"`
	Position      int             `gorm:"not null"`
	CatalogItemID string          `gorm:"size:64;not null"`
	Name          string          `gorm:"size:255;not null"`
	Quantity      int32           `gorm:"not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Specification string          `gorm:"type:text"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// IsTerminal reports whether the callback reconciler has already settled the order.
func (o *Order) IsTerminal() bool {
	return o.PaymentStatus != PaymentPending
}
