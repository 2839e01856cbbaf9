package models

import "time"

// AffiliateWithdrawal 推广提现申请
type AffiliateWithdrawal struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                // 主键
	AffiliateUserID uint       `gorm:"not null;index" json:"affiliateUserId"`               // 推广用户ID
	Amount          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 提现金额
	Status          string     `gorm:"type:varchar(32);not null;index" json:"status"`       // 提现状态
	PaymentDetails  JSON       `gorm:"type:json" json:"paymentDetails,omitempty"`           // 收款信息
	RequestedAt     time.Time  `gorm:"index;not null" json:"requestedAt"`                   // 申请时间
	ProcessedAt     *time.Time `gorm:"index" json:"processedAt,omitempty"`                  // 处理时间
	ProcessedBy     *uint      `gorm:"index" json:"processedBy,omitempty"`                  // 处理管理员
	RejectReason    string     `gorm:"type:varchar(255)" json:"rejectReason,omitempty"`     // 驳回原因
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`                              // 创建时间
	UpdatedAt       time.Time  `json:"updatedAt"`                                           // 更新时间
}

// TableName 指定表名
func (AffiliateWithdrawal) TableName() string {
	return "affiliate_withdrawals"
}
