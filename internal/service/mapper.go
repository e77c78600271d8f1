package service

import (
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/model"
)

func toFacilityDTO(f model.Facility) *dto.Facility {
	out := &dto.Facility{
		Name:    f.Name,
		Type:    f.Type,
		Address: f.Address,
		City:    f.City,
		County:  f.County,
	}
	if f.Latitude != nil && f.Longitude != nil {
		out.Coordinates = &dto.Coordinates{Latitude: *f.Latitude, Longitude: *f.Longitude}
	}
	return out
}

func toPrimaryContactDTO(c model.PrimaryContact) *dto.PrimaryContact {
	return &dto.PrimaryContact{Name: c.Name, Email: c.Email, Phone: c.Phone, JobTitle: c.JobTitle}
}

func toAlternativeContactDTO(c model.AlternativeContact) *dto.AlternativeContact {
	return &dto.AlternativeContact{Name: c.Name, Email: c.Email, Phone: c.Phone, Relationship: c.Relationship}
}

func toItemDTOs(items []model.OrderItem) []dto.OrderItem {
	out := make([]dto.OrderItem, len(items))
	for i, item := range items {
		out[i] = dto.OrderItem{
			CatalogItemID: item.CatalogItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			Price:         item.UnitPrice.InexactFloat64(),
			Subtotal:      item.Subtotal().InexactFloat64(),
			Specification: item.Specification,
		}
	}
	return out
}

func toOrderDTO(o *model.Order) *dto.Order {
	return &dto.Order{
		OrderID:            o.ID,
		OrderNumber:        o.OrderNumber,
		PrimaryContact:     toPrimaryContactDTO(o.PrimaryContact),
		Facility:           toFacilityDTO(o.Facility),
		AlternativeContact: toAlternativeContactDTO(o.AlternativeContact),
		Items:              toItemDTOs(o.Items),
		TotalAmount:        o.TotalAmount.InexactFloat64(),
		Currency:           o.Currency,
		PaymentMethod:      o.PaymentMethod,
		PaymentStatus:      string(o.PaymentStatus),
		OrderStatus:        string(o.OrderStatus),
		Payment: dto.PaymentInfo{
			CheckoutRequestID:  o.Payment.CheckoutRequestID,
			PhoneNumber:        o.Payment.PhoneNumber,
			MpesaReceiptNumber: o.Payment.MpesaReceiptNumber,
			TransactionDate:    o.Payment.TransactionDate,
			PaidPhoneNumber:    o.Payment.PaidPhoneNumber,
		},
		ReceiptNumber: o.ReceiptNumber,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderDTOs(orders []*model.Order) []*dto.Order {
	out := make([]*dto.Order, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	return out
}
