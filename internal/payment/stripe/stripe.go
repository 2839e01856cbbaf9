package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrResponseInvalid  = errors.New("stripe response invalid")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
)

const (
	defaultAPIBaseURL        = "https://api.stripe.com"
	defaultTimeout           = 12 * time.Second
	defaultWebhookToleranceS = 300

	// EventPaymentIntentSucceeded 支付成功事件
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	// StatusSucceeded PaymentIntent 成功状态
	StatusSucceeded = "succeeded"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"JPY": {},
	"KRW": {},
	"VND": {},
	"XAF": {},
	"XOF": {},
}

// Config Stripe 配置。
type Config struct {
	SecretKey               string
	WebhookSecret           string
	APIBaseURL              string
	WebhookToleranceSeconds int
	Timeout                 time.Duration
}

// PaymentIntent PaymentIntent 查询结果。
type PaymentIntent struct {
	ID       string
	Status   string
	OrderID  string
	Amount   string
	Currency string
	Created  *time.Time
	Raw      map[string]interface{}
}

// Succeeded 是否支付成功。
func (p *PaymentIntent) Succeeded() bool {
	return p != nil && strings.EqualFold(p.Status, StatusSucceeded)
}

// WebhookResult Stripe Webhook 解析结果。
type WebhookResult struct {
	EventID         string
	EventType       string
	OrderID         string
	AffiliateUserID string
	PaymentIntentID string
	Status          string
	Amount          string
	Currency        string
	PaidAt          *time.Time
	Raw             map[string]interface{}
}

// Normalize 填充默认值。
func (c *Config) Normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.WebhookToleranceSeconds <= 0 {
		c.WebhookToleranceSeconds = defaultWebhookToleranceS
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// ValidateConfig 校验 API 调用所需配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// RetrievePaymentIntent 查询 PaymentIntent。
func RetrievePaymentIntent(ctx context.Context, cfg *Config, paymentIntentID string) (*PaymentIntent, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment_intent is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/v1/payment_intents/%s", url.PathEscape(paymentIntentID))
	respBody, statusCode, err := doJSONRequest(ctx, cfg, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: retrieve payment intent status %d", ErrResponseInvalid, statusCode)
	}
	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &PaymentIntent{
		ID:       readString(raw, "id"),
		Status:   strings.ToLower(readString(raw, "status")),
		OrderID:  readOrderID(readMap(raw, "metadata")),
		Currency: strings.ToUpper(readString(raw, "currency")),
		Raw:      raw,
	}
	if amountMinor := readAmountMinor(raw); amountMinor > 0 && result.Currency != "" {
		result.Amount = fromMinorAmount(amountMinor, result.Currency)
	}
	if created := readInt64(raw, "created"); created > 0 {
		t := time.Unix(created, 0)
		result.Created = &t
	}
	if result.ID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	return result, nil
}

// VerifyAndParseWebhook 校验并解析 Stripe webhook。
func VerifyAndParseWebhook(cfg *Config, headers map[string]string, body []byte, now time.Time) (*WebhookResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	if now.IsZero() {
		now = time.Now()
	}

	signatureHeader := getHeaderValue(headers, "Stripe-Signature")
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: Stripe-Signature is required", ErrSignatureInvalid)
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	if cfg.WebhookToleranceSeconds > 0 {
		delta := math.Abs(float64(now.Unix() - timestamp))
		if delta > float64(cfg.WebhookToleranceSeconds) {
			return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}

	expected := computeSignature(cfg.WebhookSecret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	eventRaw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	eventType := readString(eventRaw, "type")
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}
	objectRaw := readMap(readMap(eventRaw, "data"), "object")
	if objectRaw == nil {
		return nil, fmt.Errorf("%w: missing event object", ErrResponseInvalid)
	}

	metadata := readMap(objectRaw, "metadata")
	result := &WebhookResult{
		EventID:         readString(eventRaw, "id"),
		EventType:       eventType,
		OrderID:         readOrderID(metadata),
		AffiliateUserID: readString(metadata, "affiliate"),
		Currency:        strings.ToUpper(readString(objectRaw, "currency")),
		Raw:             eventRaw,
	}
	if readString(objectRaw, "object") == "payment_intent" {
		result.PaymentIntentID = readString(objectRaw, "id")
	} else {
		result.PaymentIntentID = readString(objectRaw, "payment_intent")
	}
	if amountMinor := readAmountMinor(objectRaw); amountMinor > 0 && result.Currency != "" {
		result.Amount = fromMinorAmount(amountMinor, result.Currency)
	}
	if created := readInt64(objectRaw, "created"); created > 0 {
		paidAt := time.Unix(created, 0)
		result.PaidAt = &paidAt
	}
	if status, ok := mapEventTypeStatus(eventType); ok {
		result.Status = status
	} else {
		result.Status = mapPaymentIntentStatus(readString(objectRaw, "status"))
	}
	return result, nil
}

// SignPayload 生成 Stripe-Signature 头，用于测试与本地调试。
func SignPayload(secret string, timestamp int64, body []byte) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + computeSignature(secret, timestamp, body)
}

func mapEventTypeStatus(eventType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventPaymentIntentSucceeded, "checkout.session.completed":
		return "success", true
	case "payment_intent.payment_failed", "payment_intent.canceled":
		return "failed", true
	case "payment_intent.processing":
		return "pending", true
	default:
		return "", false
	}
}

func mapPaymentIntentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusSucceeded:
		return "success"
	case "canceled", "requires_payment_method":
		return "failed"
	default:
		return "pending"
	}
}

// readOrderID 兼容 orderId 与 order_id 两种元数据键。
func readOrderID(metadata map[string]interface{}) string {
	if id := readString(metadata, "orderId"); id != "" {
		return id
	}
	return readString(metadata, "order_id")
}

func readAmountMinor(raw map[string]interface{}) int64 {
	if amount := readInt64(raw, "amount_received"); amount > 0 {
		return amount
	}
	if amount := readInt64(raw, "amount"); amount > 0 {
		return amount
	}
	return readInt64(raw, "amount_total")
}

func fromMinorAmount(minor int64, currency string) string {
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

func currencyScale(currency string) int {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

func doJSONRequest(ctx context.Context, cfg *Config, method, path string) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		value := strings.TrimSpace(kv[1])
		switch strings.TrimSpace(kv[0]) {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func getHeaderValue(headers map[string]string, key string) string {
	for h, value := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	switch typed := raw[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case map[string]interface{}:
		// 展开后的对象取其 id
		return readString(typed, "id")
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	mapped, _ := raw[key].(map[string]interface{})
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil {
		return 0
	}
	switch typed := raw[key].(type) {
	case float64:
		return int64(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
