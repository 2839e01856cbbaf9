package bkash

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("bkash config invalid")
	ErrNetwork         = errors.New("bkash network error")
	ErrRejected        = errors.New("bkash request rejected")
	ErrResponseInvalid = errors.New("bkash response invalid")
)

const (
	defaultBaseURL     = "https://sandbox.bkashapi.com"
	defaultCallbackURL = "http://localhost:4007/api/bkash/callback"
	defaultTokenTTL    = 55 * time.Minute
	defaultTimeout     = 15 * time.Second
	checkoutPath       = "/v1.2.0/tokenized/checkout"

	// StatusCodeSuccess 接口成功状态码
	StatusCodeSuccess = "0000"
	// MockOTP 模拟模式固定验证码
	MockOTP = "123456"
)

// 交易状态
const (
	TransactionCompleted = "Completed"
	TransactionFailed    = "Failed"
	TransactionCancelled = "Cancelled"
)

// Config bKash 网关配置。
type Config struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	Username    string
	Password    string
	CallbackURL string
	Mock        bool
	TokenTTL    time.Duration
	Timeout     time.Duration
}

// Normalize 填充默认值。
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.AppKey = strings.TrimSpace(c.AppKey)
	c.AppSecret = strings.TrimSpace(c.AppSecret)
	c.Username = strings.TrimSpace(c.Username)
	c.CallbackURL = strings.TrimSpace(c.CallbackURL)
	if c.CallbackURL == "" {
		c.CallbackURL = defaultCallbackURL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// ValidateConfig 校验配置，模拟模式只要求回调地址合法。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.CallbackURL); err != nil {
		return fmt.Errorf("%w: callback_url is invalid", ErrConfigInvalid)
	}
	if cfg.Mock {
		return nil
	}
	if cfg.AppKey == "" {
		return fmt.Errorf("%w: app_key is required", ErrConfigInvalid)
	}
	if cfg.AppSecret == "" {
		return fmt.Errorf("%w: app_secret is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// RejectedError 网关明确拒绝的请求，携带网关返回的信息。
type RejectedError struct {
	Operation     string
	HTTPStatus    int
	StatusCode    string
	StatusMessage string
}

func (e *RejectedError) Error() string {
	msg := e.StatusMessage
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("bKash %s error: %s", e.Operation, msg)
}

// Is 使 errors.Is(err, ErrRejected) 成立。
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// IsNetworkError 判断是否为网络层失败（DNS、连接、超时）。
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// RejectionMessage 提取网关拒绝信息。
func RejectionMessage(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusMessage, true
	}
	return "", false
}

// CreateResult 创建支付返回。
type CreateResult struct {
	PaymentID string `json:"paymentID"`
	BkashURL  string `json:"bkashURL"`
}

// ExecuteResult 执行支付返回。
type ExecuteResult struct {
	PaymentID      string `json:"paymentID"`
	TrxID          string `json:"trxID"`
	Amount         string `json:"amount"`
	Status         string `json:"transactionStatus"`
	CustomerNumber string `json:"customerMsisdn"`
	CompletedTime  string `json:"completedTime"`
}

// PaymentStatus 查询支付返回。
type PaymentStatus struct {
	StatusCode            string `json:"statusCode"`
	StatusMessage         string `json:"statusMessage"`
	PaymentID             string `json:"paymentID"`
	TransactionStatus     string `json:"transactionStatus"`
	TrxID                 string `json:"trxID"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency,omitempty"`
	CustomerMsisdn        string `json:"customerMsisdn"`
	CompletedTime         string `json:"completedTime,omitempty"`
}

// Succeeded 查询接口是否成功返回。
func (p *PaymentStatus) Succeeded() bool {
	return p != nil && p.StatusCode == StatusCodeSuccess
}

// RefundInput 退款输入。
type RefundInput struct {
	PaymentID string
	TrxID     string
	Amount    decimal.Decimal
	Reason    string
	SKU       string
}

// RefundResult 退款返回。
type RefundResult struct {
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	OriginalTrxID string `json:"originalTrxID"`
	RefundTrxID   string `json:"refundTrxID"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// OTPResult 验证码发送/校验返回，MockOTP 仅模拟模式返回。
type OTPResult struct {
	StatusCode     string `json:"statusCode"`
	StatusMessage  string `json:"statusMessage"`
	CustomerMsisdn string `json:"customerMsisdn"`
	MockOTP        string `json:"mockOtp,omitempty"`
}

// Client bKash Tokenized Checkout 客户端。
type Client struct {
	cfg        Config
	tokens     TokenCache
	httpClient *http.Client
	now        func() time.Time
	randomID   func() string
}

// Option 客户端选项。
type Option func(*Client)

// WithTokenCache 注入 token 缓存。
func WithTokenCache(cache TokenCache) Option {
	return func(c *Client) {
		if cache != nil {
			c.tokens = cache
		}
	}
}

// WithHTTPClient 注入 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock 注入时钟。
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator 注入模拟模式随机串生成器。
func WithIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.randomID = gen
		}
	}
}

// NewClient 创建客户端。
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.Normalize()
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		randomID:   randomBase36,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewMemoryTokenCache(c.now)
	}
	return c, nil
}

// Mock 是否为模拟模式。
func (c *Client) Mock() bool {
	return c != nil && c.cfg.Mock
}

// CallbackURL 回调地址。
func (c *Client) CallbackURL() string {
	return c.cfg.CallbackURL
}

// Token 获取可用 token，过期或失效时重新申请。
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx); ok && token.Valid(c.now()) {
		return token.IDToken, nil
	}
	if c.cfg.Mock {
		token := Token{
			IDToken:      "mock_token_" + c.randomID(),
			RefreshToken: "mock_refresh_token",
			ExpiresAt:    c.now().Add(c.cfg.TokenTTL),
		}
		c.tokens.Set(ctx, token)
		return token.IDToken, nil
	}

	headers := map[string]string{}
	if c.cfg.Username != "" {
		headers["username"] = c.cfg.Username
		headers["password"] = c.cfg.Password
	}
	var resp struct {
		IDToken       string `json:"id_token"`
		RefreshToken  string `json:"refresh_token"`
		StatusCode    string `json:"statusCode"`
		StatusMessage string `json:"statusMessage"`
	}
	status, err := c.post(ctx, "/token/grant", map[string]string{
		"app_key":    c.cfg.AppKey,
		"app_secret": c.cfg.AppSecret,
	}, headers, &resp)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 || strings.TrimSpace(resp.IDToken) == "" {
		return "", &RejectedError{Operation: "token", HTTPStatus: status, StatusCode: resp.StatusCode, StatusMessage: resp.StatusMessage}
	}
	c.tokens.Set(ctx, Token{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.now().Add(c.cfg.TokenTTL),
	})
	return resp.IDToken, nil
}

// InvalidateToken 清除缓存 token。
func (c *Client) InvalidateToken(ctx context.Context) {
	c.tokens.Invalidate(ctx)
}

// CreatePayment 创建支付，返回 paymentID 与跳转地址。
func (c *Client) CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal, phone string) (*CreateResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrConfigInvalid)
	}
	if c.cfg.Mock {
		paymentID := fmt.Sprintf("mock_%d_%s", c.now().UnixMilli(), c.randomID())
		query := url.Values{}
		query.Set("paymentID", paymentID)
		query.Set("orderId", orderID)
		query.Set("status", TransactionCompleted)
		return &CreateResult{
			PaymentID: paymentID,
			BkashURL:  c.cfg.CallbackURL + "?" + query.Encode(),
		}, nil
	}

	var resp struct {
		envelope
		PaymentID string `json:"paymentID"`
		BkashURL  string `json:"bkashURL"`
	}
	err := c.call(ctx, "create payment", "/create", map[string]string{
		"mode":                  "0011",
		"paymentType":           "Checkout",
		"amount":                amount.Round(2).StringFixed(2),
		"currency":              "BDT",
		"intent":                "sale",
		"merchantInvoiceNumber": orderID,
		"payerReference":        DigitsOnly(phone),
		"customerMsisdn":        DigitsOnly(phone),
		"callbackURL":           c.cfg.CallbackURL,
	}, &resp, &resp.envelope)
	if err != nil {
		return nil, err
	}
	if resp.PaymentID == "" {
		return nil, fmt.Errorf("%w: missing paymentID", ErrResponseInvalid)
	}
	return &CreateResult{PaymentID: resp.PaymentID, BkashURL: resp.BkashURL}, nil
}

// ExecutePayment 用户在 bKash 授权后执行支付。
func (c *Client) ExecutePayment(ctx context.Context, paymentID string) (*ExecuteResult, error) {
	if c.cfg.Mock {
		return &ExecuteResult{
			PaymentID:     paymentID,
			TrxID:         "mock_trx_" + c.randomID(),
			Status:        TransactionCompleted,
			CompletedTime: c.now().UTC().Format(time.RFC3339),
		}, nil
	}
	var resp struct {
		envelope
		ExecuteResult
	}
	if err := c.call(ctx, "execute payment", "/execute", map[string]string{"paymentID": paymentID}, &resp, &resp.envelope); err != nil {
		return nil, err
	}
	result := resp.ExecuteResult
	return &result, nil
}

// QueryPayment 查询支付状态；statusCode 非 0000 时仍返回结果，由调用方判断。
func (c *Client) QueryPayment(ctx context.Context, paymentID, orderID string) (*PaymentStatus, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: paymentID is required", ErrConfigInvalid)
	}
	if c.cfg.Mock {
		invoice := strings.TrimSpace(orderID)
		if invoice == "" {
			invoice = "unknown_order"
		}
		return &PaymentStatus{
			StatusCode:            StatusCodeSuccess,
			StatusMessage:         "Successful",
			PaymentID:             paymentID,
			TransactionStatus:     TransactionCompleted,
			TrxID:                 "mock_trx_" + c.randomID(),
			MerchantInvoiceNumber: invoice,
			Amount:                "100",
			CustomerMsisdn:        "01712345678",
			CompletedTime:         c.now().UTC().Format(time.RFC3339),
		}, nil
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	var resp PaymentStatus
	status, err := c.post(ctx, "/payment/status", map[string]string{"paymentID": paymentID}, c.authHeaders(token), &resp)
	if err != nil {
		return nil, err
	}
	if err := c.checkHTTP(ctx, "query", status, resp.StatusCode, resp.StatusMessage); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundPayment 退款。
func (c *Client) RefundPayment(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if strings.TrimSpace(input.TrxID) == "" {
		return nil, fmt.Errorf("%w: trxID is required", ErrConfigInvalid)
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: refund amount must be greater than zero", ErrConfigInvalid)
	}
	amount := input.Amount.Round(2).StringFixed(2)
	if c.cfg.Mock {
		return &RefundResult{
			StatusCode:    StatusCodeSuccess,
			StatusMessage: "Successful",
			OriginalTrxID: input.TrxID,
			RefundTrxID:   "mock_refund_" + c.randomID(),
			Amount:        amount,
			Currency:      "BDT",
		}, nil
	}

	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		sku = "order"
	}
	var resp struct {
		envelope
		RefundResult
	}
	err := c.call(ctx, "refund", "/payment/refund", map[string]string{
		"paymentID": strings.TrimSpace(input.PaymentID),
		"trxID":     strings.TrimSpace(input.TrxID),
		"amount":    amount,
		"reason":    strings.TrimSpace(input.Reason),
		"sku":       sku,
	}, &resp, &resp.envelope)
	if err != nil {
		return nil, err
	}
	result := resp.RefundResult
	result.StatusCode = resp.envelope.StatusCode
	result.StatusMessage = resp.envelope.StatusMessage
	return &result, nil
}

// SendOTP 向用户手机号发送验证码。
func (c *Client) SendOTP(ctx context.Context, phone string) (*OTPResult, error) {
	if c.cfg.Mock {
		return &OTPResult{
			StatusCode:     StatusCodeSuccess,
			StatusMessage:  "OTP sent successfully",
			CustomerMsisdn: phone,
			MockOTP:        MockOTP,
		}, nil
	}
	var resp struct {
		envelope
		CustomerMsisdn string `json:"customerMsisdn"`
	}
	if err := c.call(ctx, "send OTP", "/send/otp", map[string]string{"customerMsisdn": DigitsOnly(phone)}, &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return &OTPResult{StatusCode: resp.StatusCode, StatusMessage: resp.StatusMessage, CustomerMsisdn: resp.CustomerMsisdn}, nil
}

// VerifyOTP 校验验证码。
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*OTPResult, error) {
	if c.cfg.Mock {
		if strings.TrimSpace(otp) != MockOTP {
			return nil, &RejectedError{Operation: "verify OTP", StatusCode: "mock", StatusMessage: "Invalid OTP. Use 123456 for testing."}
		}
		return &OTPResult{
			StatusCode:     StatusCodeSuccess,
			StatusMessage:  "OTP verified successfully",
			CustomerMsisdn: phone,
		}, nil
	}
	var resp struct {
		envelope
		CustomerMsisdn string `json:"customerMsisdn"`
	}
	err := c.call(ctx, "verify OTP", "/verify/otp", map[string]string{
		"customerMsisdn": DigitsOnly(phone),
		"otp":            strings.TrimSpace(otp),
	}, &resp, &resp.envelope)
	if err != nil {
		return nil, err
	}
	return &OTPResult{StatusCode: resp.StatusCode, StatusMessage: resp.StatusMessage, CustomerMsisdn: resp.CustomerMsisdn}, nil
}

// DigitsOnly 去除手机号中的非数字字符。
func DigitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

type envelope struct {
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
}

func (e envelope) code() string {
	if e.StatusCode != "" {
		return e.StatusCode
	}
	return e.ErrorCode
}

func (e envelope) message() string {
	if e.StatusMessage != "" {
		return e.StatusMessage
	}
	return e.ErrorMessage
}

// call 发送需鉴权的请求，statusCode 非 0000 视为拒绝。
func (c *Client) call(ctx context.Context, operation, path string, body interface{}, out interface{}, env *envelope) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	status, err := c.post(ctx, path, body, c.authHeaders(token), out)
	if err != nil {
		return err
	}
	if err := c.checkHTTP(ctx, operation, status, env.code(), env.message()); err != nil {
		return err
	}
	if env.code() != StatusCodeSuccess {
		return &RejectedError{Operation: operation, HTTPStatus: status, StatusCode: env.code(), StatusMessage: env.message()}
	}
	return nil
}

func (c *Client) checkHTTP(ctx context.Context, operation string, status int, code, message string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.InvalidateToken(ctx)
	}
	if status < 200 || status >= 300 {
		return &RejectedError{Operation: operation, HTTPStatus: status, StatusCode: code, StatusMessage: message}
	}
	return nil
}

func (c *Client) authHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": token,
		"X-APP-Key":     c.cfg.AppKey,
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("%w: encode request failed", ErrResponseInvalid)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+checkoutPath+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: build request failed: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response failed: %v", ErrNetwork, err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("%w: empty response", ErrResponseInvalid)
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return resp.StatusCode, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36() string {
	buf := make([]byte, 9)
	max := big.NewInt(int64(len(base36)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			buf[i] = '0'
			continue
		}
		buf[i] = base36[n.Int64()]
	}
	return string(buf)
}
