package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Daraja result code for a successful STK payment.
const MpesaResultSuccess = 0

const (
	MetaReceiptNumber   = "MpesaReceiptNumber"
	MetaTransactionDate = "TransactionDate"
	MetaPhoneNumber     = "PhoneNumber"
	MetaAmount          = "Amount"
)

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *int              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type StkCallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

type StkCallbackEnvelope struct {
	Body *StkCallbackBody `json:"Body"`
}

// Lookup returns the raw metadata value by name.
func (m *CallbackMetadata) Lookup(name string) (json.RawMessage, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name && len(item.Value) > 0 && string(item.Value) != "null" {
			return item.Value, true
		}
	}
	return nil, false
}

// String reads a metadata value that Daraja may send either as a JSON
// string or as a bare number (phone numbers and dates are numbers).
func (m *CallbackMetadata) String(name string) (string, bool) {
	raw, ok := m.Lookup(name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return plainNumber(n.String()), true
	}
	return "", false
}

// plainNumber rewrites exponent form (2.54708374149E11) as plain digits.
func plainNumber(s string) string {
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Time parses a yyyyMMddHHmmss metadata value in Nairobi time.
func (m *CallbackMetadata) Time(name string) (*time.Time, bool) {
	s, ok := m.String(name)
	if !ok {
		return nil, false
	}
	// numbers can arrive in exponent form once they pass through a float
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		s = fmt.Sprintf("%.0f", f)
	}
	t, err := time.ParseInLocation(MpesaTimestampLayout, s, NairobiLocation)
	if err != nil {
		return nil, false
	}
	return &t, true
}

const MpesaTimestampLayout = "20060102150405"

// NairobiLocation is East Africa Time, the zone Daraja timestamps are expressed in.
var NairobiLocation = time.FixedZone("EAT", 3*60*60)
