package models

import "time"

// AffiliateEarning 推广佣金记录，每个订单项一条
type AffiliateEarning struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                                       // 主键
	AffiliateUserID   uint      `gorm:"not null;index" json:"affiliateUserId"`                                      // 推广用户ID
	OrderID           uint      `gorm:"not null;index;uniqueIndex:idx_affiliate_earning_order_item" json:"orderId"` // 订单ID
	OrderItemID       uint      `gorm:"not null;uniqueIndex:idx_affiliate_earning_order_item" json:"orderItemId"`   // 订单项ID
	ProductID         uint      `gorm:"not null;index" json:"productId"`                                            // 商品ID
	OrderAmount       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"orderAmount"`                   // 订单项金额（单价 x 数量）
	CommissionPercent Money     `gorm:"type:decimal(10,2);not null;default:10" json:"commissionPercent"`            // 佣金比例（百分比）
	CommissionAmount  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commissionAmount"`              // 佣金金额
	Status            string    `gorm:"type:varchar(32);not null;index" json:"status"`                              // 佣金状态
	CreatedAt         time.Time `gorm:"index" json:"createdAt"`                                                     // 创建时间
	UpdatedAt         time.Time `json:"updatedAt"`                                                                  // 更新时间
}

// TableName 指定表名
func (AffiliateEarning) TableName() string {
	return "affiliate_earnings"
}
