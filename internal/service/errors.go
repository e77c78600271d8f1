package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrReceiptUnavailable   = errors.New("receipt is only available for paid orders")
)

// ValidationError is a client-correctable request problem on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PushFailedError reports a gateway failure after the order was stored.
// The order stays pending so it can be followed up.
type PushFailedError struct {
	OrderNumber string
	Err         error
}

func (e *PushFailedError) Error() string {
	return fmt.Sprintf("order %s saved but payment request failed: %v", e.OrderNumber, e.Err)
}

func (e *PushFailedError) Unwrap() error { return e.Err }
