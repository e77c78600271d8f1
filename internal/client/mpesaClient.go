package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mpesa-checkout-service/internal/config"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/model"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Daraja field limits.
const (
	maxAccountReferenceLen = 12
	maxTransactionDescLen  = 13
)

const queryStatusAttempts = 2

type MpesaClient interface {
	AcquireAccessToken(ctx context.Context) (string, error)
	InitiatePush(ctx context.Context, phoneNumber string, amount float64, orderReference, description string) (*PushResult, error)
	QueryStatus(ctx context.Context, checkoutID string) (*StkQueryResponse, error)
}

type PushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// StkQueryResponse is the raw status-query payload. It is not interpreted here.
type StkQueryResponse struct {
	ResponseCode        json.Number     `json:"ResponseCode,omitempty"`
	ResponseDescription string          `json:"ResponseDescription,omitempty"`
	MerchantRequestID   string          `json:"MerchantRequestID,omitempty"`
	CheckoutRequestID   string          `json:"CheckoutRequestID,omitempty"`
	ResultCode          json.Number     `json:"ResultCode,omitempty"`
	ResultDesc          string          `json:"ResultDesc,omitempty"`
	Raw                 json.RawMessage `json:"-"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResponseCode        json.Number `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	CustomerMessage     string      `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// darajaError is the body Daraja returns with non-2xx statuses.
type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type mpesaClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	now            func() time.Time
}

func NewMpesaClient(mpesaCfg *config.Mpesa) MpesaClient {
	timeout := mpesaCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &mpesaClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseApiURL:     mpesaCfg.APIBaseURL(),
		consumerKey:    mpesaCfg.ConsumerKey,
		consumerSecret: mpesaCfg.ConsumerSecret,
		shortCode:      mpesaCfg.ShortCode,
		passkey:        mpesaCfg.Passkey,
		callbackURL:    mpesaCfg.CallbackURL,
		now:            time.Now,
	}
}

func (c *mpesaClientImpl) AcquireAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.consumerKey + ":" + c.consumerSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseApiURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", unreachable("mpesa oauth", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("mpesa oauth: %w: status=%d", ErrGatewayUnreachable, resp.StatusCode)
	}

	var res struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.AccessToken == "" {
		return "", fmt.Errorf("%w: status=%d", ErrAuthFailure, resp.StatusCode)
	}

	return res.AccessToken, nil
}

func (c *mpesaClientImpl) InitiatePush(ctx context.Context, phoneNumber string, amount float64, orderReference, description string) (*PushResult, error) {
	accessToken, err := c.AcquireAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get mpesa access token: %w", err)
	}

	password, timestamp := c.password()
	payload := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            RoundAmount(amount),
		PartyA:            phoneNumber,
		PartyB:            c.shortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.callbackURL,
		AccountReference:  truncate(orderReference, maxAccountReferenceLen),
		TransactionDesc:   truncate(description, maxTransactionDescLen),
	}

	status, body, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", accessToken, payload)
	if err != nil {
		return nil, unreachable("mpesa stk push", err)
	}

	if status < 200 || status >= 300 {
		return nil, rejection(status, body)
	}

	var result stkPushResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode mpesa stk push response: %w", err)
	}

	if result.ResponseCode.String() != "0" {
		return nil, &GatewayRejectedError{
			Code:    result.ResponseCode.String(),
			Message: result.ResponseDescription,
		}
	}

	return &PushResult{
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		CustomerMessage:   result.CustomerMessage,
	}, nil
}

// QueryStatus is a read, so a transport failure is retried once.
func (c *mpesaClientImpl) QueryStatus(ctx context.Context, checkoutID string) (*StkQueryResponse, error) {
	var lastErr error
	for attempt := 0; attempt < queryStatusAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying mpesa status query",
				zap.String("checkout_request_id", checkoutID),
				zap.Error(lastErr),
			)
		}

		res, err := c.queryStatusOnce(ctx, checkoutID)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, ErrGatewayUnreachable) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *mpesaClientImpl) queryStatusOnce(ctx context.Context, checkoutID string) (*StkQueryResponse, error) {
	accessToken, err := c.AcquireAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get mpesa access token: %w", err)
	}

	password, timestamp := c.password()
	status, body, err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", accessToken, stkQueryRequest{
		BusinessShortCode: c.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutID,
	})
	if err != nil {
		return nil, unreachable("mpesa stk query", err)
	}

	if status < 200 || status >= 300 {
		return nil, rejection(status, body)
	}

	var result StkQueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode mpesa stk query response: %w", err)
	}
	result.Raw = json.RawMessage(body)

	return &result, nil
}

func (c *mpesaClientImpl) postJSON(ctx context.Context, path, accessToken string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, bytes.NewBuffer(body))
	if err != nil {
		return 0, nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, b, nil
}

// password is recomputed per request because the timestamp is part of it.
func (c *mpesaClientImpl) password() (string, string) {
	timestamp := c.now().In(model.NairobiLocation).Format(model.MpesaTimestampLayout)
	return StkPassword(c.shortCode, c.passkey, timestamp), timestamp
}

// StkPassword is base64(shortCode + passkey + timestamp).
func StkPassword(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// RoundAmount rounds to whole shillings; the STK rail rejects fractional amounts.
func RoundAmount(amount float64) int64 {
	return int64(math.Round(amount))
}

// rejection maps a non-2xx reply. A 5xx without a Daraja error body is
// treated as the gateway being unavailable rather than a decision.
func rejection(status int, body []byte) error {
	var derr darajaError
	if err := json.Unmarshal(body, &derr); err == nil && derr.ErrorMessage != "" {
		return &GatewayRejectedError{Code: derr.ErrorCode, Message: derr.ErrorMessage}
	}
	if status >= 500 {
		return fmt.Errorf("%w: status=%d", ErrGatewayUnreachable, status)
	}
	return &GatewayRejectedError{
		Code:    fmt.Sprintf("http_%d", status),
		Message: string(body),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
