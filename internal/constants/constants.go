package constants

// 佣金状态常量
const (
	EarningStatusPending   = "pending"
	EarningStatusConfirmed = "confirmed"
	EarningStatusPaid      = "paid"
)

// 提现状态常量
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusPaid     = "paid"
	WithdrawalStatusRejected = "rejected"
)

// 提现审核动作
const (
	WithdrawalActionPay    = "pay"
	WithdrawalActionReject = "reject"
)

// 结算来源
const (
	SettlementSourceManual = "manual"
	SettlementSourceBkash  = "bkash"
	SettlementSourceStripe = "stripe"
	SettlementSourceRetry  = "retry"
)

// 支付方式
const (
	PaymentMethodBkash  = "bkash"
	PaymentMethodStripe = "stripe"
)

// 推广用户角色（大小写不敏感）
const (
	UserRoleAffiliate              = "affiliate"
	UserRoleAffiliateMarketer      = "affiliate-marketer"
	UserRoleAffiliateMarketerSnake = "affiliate_marketer"
	UserRoleCustomer               = "user"
)

// 佣金比例规则
const (
	DefaultCommissionPercent = 10
)

// 商品名称解析失败时的占位
const UnknownProductName = "Unknown product"

// 队列与任务
const (
	QueueDefault             = "default"
	QueueCritical            = "critical"
	TaskSettleOrder          = "affiliate:settle_order"
	SettleTaskMaxRetry       = 8
	SettleTaskTimeoutSeconds = 30
)

// 客户端 IP 未知时的占位
const UnknownClientIP = "unknown"

// 验证码
const (
	CaptchaProviderNone      = "none"
	CaptchaProviderImage     = "image"
	CaptchaSceneAdminLogin   = "admin_login"
	CaptchaSceneBkashSendOTP = "bkash_send_otp"
)
