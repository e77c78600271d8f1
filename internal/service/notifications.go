package service

import (
	"encoding/json"
	"mpesa-checkout-service/internal/model"
	"mpesa-checkout-service/internal/notification"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Recipients resolves who receives staff-facing notifications.
type Recipients struct {
	Staff []string
}

func orderMailData(order *model.Order) map[string]interface{} {
	data := map[string]interface{}{
		"orderNumber":       order.OrderNumber,
		"customerName":      order.PrimaryContact.Name,
		"customerEmail":     order.PrimaryContact.Email,
		"customerPhone":     order.PrimaryContact.Phone,
		"facilityName":      order.Facility.Name,
		"facilityCity":      order.Facility.City,
		"facilityCounty":    order.Facility.County,
		"totalAmount":       order.TotalAmount.StringFixed(2),
		"currency":          order.Currency,
		"itemCount":         len(order.Items),
		"phoneNumber":       order.Payment.PhoneNumber,
		"checkoutRequestID": order.Payment.CheckoutRequestID,
	}
	if order.Payment.MpesaReceiptNumber != "" {
		data["mpesaReceiptNumber"] = order.Payment.MpesaReceiptNumber
	}
	if order.Payment.PaidPhoneNumber != "" {
		data["paidPhoneNumber"] = order.Payment.PaidPhoneNumber
	}
	return data
}

func newOutboxEntry(orderID, templateName string, to []string, data map[string]interface{}) *model.NotificationOutbox {
	payload, _ := json.Marshal(data)
	return &model.NotificationOutbox{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		Template:   templateName,
		Recipients: datatypes.JSONSlice[string](to),
		Data:       datatypes.JSON(payload),
		Status:     model.OutboxPending,
		CreatedAt:  time.Now(),
	}
}

// orderCreatedNotifications: confirmation to the customer, new-order alert to staff.
func orderCreatedNotifications(order *model.Order, r Recipients) []*model.NotificationOutbox {
	data := orderMailData(order)
	entries := []*model.NotificationOutbox{
		newOutboxEntry(order.ID, notification.TemplateOrderConfirmation, []string{order.PrimaryContact.Email}, data),
	}
	if len(r.Staff) > 0 {
		entries = append(entries, newOutboxEntry(order.ID, notification.TemplateNewOrderStaff, r.Staff, data))
	}
	return entries
}

func paymentReceivedNotifications(order *model.Order, r Recipients) []*model.NotificationOutbox {
	data := orderMailData(order)
	entries := []*model.NotificationOutbox{
		newOutboxEntry(order.ID, notification.TemplatePaymentConfirmation, []string{order.PrimaryContact.Email}, data),
	}
	if len(r.Staff) > 0 {
		entries = append(entries, newOutboxEntry(order.ID, notification.TemplatePaymentStaff, r.Staff, data))
	}
	return entries
}
