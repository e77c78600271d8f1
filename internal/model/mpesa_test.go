package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestStkCallbackEnvelope_Metadata(t *testing.T) {
	var env StkCallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(successCallback), &env))

	cb := env.Body.StkCallback
	require.NotNil(t, cb.ResultCode)
	assert.Equal(t, MpesaResultSuccess, *cb.ResultCode)

	receipt, ok := cb.CallbackMetadata.String(MetaReceiptNumber)
	assert.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	phone, ok := cb.CallbackMetadata.String(MetaPhoneNumber)
	assert.True(t, ok)
	assert.Equal(t, "254708374149", phone)

	at, ok := cb.CallbackMetadata.Time(MetaTransactionDate)
	require.True(t, ok)
	assert.True(t, time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC).Equal(*at))

	_, ok = cb.CallbackMetadata.String("Balance")
	assert.False(t, ok)
}

func TestCallbackMetadata_MissingItems(t *testing.T) {
	var nilMeta *CallbackMetadata
	_, ok := nilMeta.String(MetaReceiptNumber)
	assert.False(t, ok)
	_, ok = nilMeta.Time(MetaTransactionDate)
	assert.False(t, ok)

	meta := &CallbackMetadata{Item: []CallbackItem{{Name: MetaTransactionDate, Value: json.RawMessage(`"not-a-date"`)}}}
	_, ok = meta.Time(MetaTransactionDate)
	assert.False(t, ok)
}

func TestCallbackMetadata_TimeFromExponentForm(t *testing.T) {
	meta := &CallbackMetadata{Item: []CallbackItem{{Name: MetaTransactionDate, Value: json.RawMessage(`2.0191219102115e13`)}}}

	at, ok := meta.Time(MetaTransactionDate)
	require.True(t, ok)
	assert.Equal(t, "20191219102115", at.In(NairobiLocation).Format(MpesaTimestampLayout))
}

func TestCallbackMetadata_StringFromExponentForm(t *testing.T) {
	meta := &CallbackMetadata{Item: []CallbackItem{
		{Name: MetaPhoneNumber, Value: json.RawMessage(`2.54708374149E11`)},
		{Name: MetaAmount, Value: json.RawMessage(`1.5e3`)},
		{Name: "Balance", Value: json.RawMessage(`12.5`)},
	}}

	phone, ok := meta.String(MetaPhoneNumber)
	require.True(t, ok)
	assert.Equal(t, "254708374149", phone)

	amount, ok := meta.String(MetaAmount)
	require.True(t, ok)
	assert.Equal(t, "1500", amount)

	balance, ok := meta.String("Balance")
	require.True(t, ok)
	assert.Equal(t, "12.5", balance)
}

func TestStkCallbackEnvelope_FailureHasNoMetadata(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"c","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

	var env StkCallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	assert.Equal(t, 1032, *env.Body.StkCallback.ResultCode)
	assert.Nil(t, env.Body.StkCallback.CallbackMetadata)
}
