package dto

import "time"

type PrimaryContact struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,msisdn"`
	JobTitle string `json:"jobTitle" validate:"required"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type Facility struct {
	Name        string       `json:"name" validate:"required"`
	Type        string       `json:"type" validate:"required"`
	Address     string       `json:"address" validate:"required"`
	City        string       `json:"city" validate:"required"`
	County      string       `json:"county" validate:"required"`
	Coordinates *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

type AlternativeContact struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,msisdn"`
	Relationship string `json:"relationship" validate:"required"`
}

type Item struct {
	CatalogItemID string  `json:"catalogItemId" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Quantity      int32   `json:"quantity" validate:"gte=1"`
	Price         float64 `json:"price" validate:"gte=0"`
	Specification string  `json:"specification,omitempty"`
}

type CreateOrderRequest struct {
	OrderNumber        string              `json:"orderNumber,omitempty" validate:"omitempty,max=64"`
	PrimaryContact     *PrimaryContact     `json:"primaryContact" validate:"required"`
	Facility           *Facility           `json:"facility" validate:"required"`
	AlternativeContact *AlternativeContact `json:"alternativeContact" validate:"required"`
	Items              []Item              `json:"items" validate:"required,min=1,dive"`
	TotalAmount        float64             `json:"totalAmount" validate:"gte=0"`
	PaymentMethod      string              `json:"paymentMethod,omitempty" validate:"omitempty,eq=mpesa"`
}

type CreateOrderResponse struct {
	OrderID            string              `json:"orderId"`
	Facility           *Facility           `json:"facility"`
	PrimaryContact     *PrimaryContact     `json:"primaryContact"`
	AlternativeContact *AlternativeContact `json:"alternativeContact"`
	TotalAmount        float64             `json:"totalAmount"`
	ItemCount          int                 `json:"itemCount"`
	PaymentStatus      string              `json:"paymentStatus"`
	CheckoutRequestID  string              `json:"checkoutRequestID"`
	NextSteps          []string            `json:"nextSteps"`
}

type OrderItem struct {
	CatalogItemID string  `json:"catalogItemId"`
	Name          string  `json:"name"`
	Quantity      int32   `json:"quantity"`
	Price         float64 `json:"price"`
	Subtotal      float64 `json:"subtotal"`
	Specification string  `json:"specification,omitempty"`
}

type PaymentInfo struct {
	CheckoutRequestID  string     `json:"checkoutRequestID,omitempty"`
	PhoneNumber        string     `json:"phoneNumber,omitempty"`
	MpesaReceiptNumber string     `json:"mpesaReceiptNumber,omitempty"`
	TransactionDate    *time.Time `json:"transactionDate,omitempty"`
	PaidPhoneNumber    string     `json:"paidPhoneNumber,omitempty"`
}

// Order is the public view of an order; merchant-side gateway ids and raw
// callback data are never exposed.
type Order struct {
	OrderID            string              `json:"orderId"`
	OrderNumber        string              `json:"orderNumber"`
	PrimaryContact     *PrimaryContact     `json:"primaryContact"`
	Facility           *Facility           `json:"facility"`
	AlternativeContact *AlternativeContact `json:"alternativeContact"`
	Items              []OrderItem         `json:"items"`
	TotalAmount        float64             `json:"totalAmount"`
	Currency           string              `json:"currency"`
	PaymentMethod      string              `json:"paymentMethod"`
	PaymentStatus      string              `json:"paymentStatus"`
	OrderStatus        string              `json:"orderStatus"`
	Payment            PaymentInfo         `json:"payment"`
	ReceiptNumber      string              `json:"receiptNumber,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type Receipt struct {
	ReceiptNumber      string      `json:"receiptNumber"`
	OrderNumber        string      `json:"orderNumber"`
	FacilityName       string      `json:"facilityName"`
	CustomerName       string      `json:"customerName"`
	CustomerEmail      string      `json:"customerEmail"`
	Items              []OrderItem `json:"items"`
	TotalAmount        float64     `json:"totalAmount"`
	Currency           string      `json:"currency"`
	MpesaReceiptNumber string      `json:"mpesaReceiptNumber,omitempty"`
	PaidAt             *time.Time  `json:"paidAt,omitempty"`
	IssuedAt           time.Time   `json:"issuedAt"`
}

type OrderStatusResponse struct {
	OrderNumber   string      `json:"orderNumber"`
	PaymentStatus string      `json:"paymentStatus"`
	OrderStatus   string      `json:"orderStatus"`
	GatewayStatus interface{} `json:"gatewayStatus,omitempty"`
	LastUpdated   time.Time   `json:"lastUpdated"`
}

type ListOrdersQuery struct {
	Page          int    `query:"page"`
	Limit         int    `query:"limit"`
	PaymentStatus string `query:"paymentStatus"`
	OrderStatus   string `query:"orderStatus"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type ListOrdersResponse struct {
	Orders     []*Order   `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// CallbackAck is the only body the gateway reads back from the callback endpoint.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type ErrorResponse struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
}
