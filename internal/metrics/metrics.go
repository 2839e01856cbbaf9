package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签
const (
	ResultSuccess  = "success"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
	ResultNetwork  = "network_error"
	ResultDup      = "already_settled"
	ResultMock     = "mock_fallback"
)

// Metrics 推广结算相关指标
type Metrics struct {
	clicks          prometheus.Counter
	settlements     *prometheus.CounterVec
	earningsAmount  *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default 返回注册到默认 Registerer 的单例
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New 创建并注册指标，测试中传入独立 Registry
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		clicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "affiliate_clicks_recorded_total",
			Help: "Affiliate clicks recorded.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affiliate_order_settlements_total",
			Help: "Order settlement attempts by source and result.",
		}, []string{"source", "result"}),
		earningsAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affiliate_commission_amount_total",
			Help: "Commission amount recorded by settlement source.",
		}, []string{"source"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affiliate_withdrawal_requests_total",
			Help: "Withdrawal requests by result.",
		}, []string{"result"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Payment gateway calls by gateway, operation and result.",
		}, []string{"gateway", "operation", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}
	registerer.MustRegister(
		m.clicks,
		m.settlements,
		m.earningsAmount,
		m.withdrawals,
		m.gatewayRequests,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ClickRecorded 点击计数
func (m *Metrics) ClickRecorded() {
	if m == nil {
		return
	}
	m.clicks.Inc()
}

// Settlement 结算结果计数
func (m *Metrics) Settlement(source, result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(source, result).Inc()
}

// CommissionRecorded 累加佣金金额
func (m *Metrics) CommissionRecorded(source string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.earningsAmount.WithLabelValues(source).Add(amount)
}

// Withdrawal 提现申请结果计数
func (m *Metrics) Withdrawal(result string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(result).Inc()
}

// GatewayRequest 网关调用计数
func (m *Metrics) GatewayRequest(gateway, operation, result string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(gateway, operation, result).Inc()
}

// ObserveHTTP 记录 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
