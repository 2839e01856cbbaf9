package models

import "time"

// AffiliateSettlement 订单结算占位，order_id 唯一保证一单只结算一次
type AffiliateSettlement struct {
	ID              uint      `gorm:"primarykey" json:"id"`                    // 主键
	OrderID         uint      `gorm:"not null;uniqueIndex" json:"orderId"`     // 订单ID
	AffiliateUserID uint      `gorm:"not null;index" json:"affiliateUserId"`   // 推广用户ID
	Source          string    `gorm:"type:varchar(32);not null" json:"source"` // 触发来源
	ItemCount       int       `gorm:"not null;default:0" json:"itemCount"`     // 生成佣金条数
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`                  // 创建时间
}

// TableName 指定表名
func (AffiliateSettlement) TableName() string {
	return "affiliate_order_settlements"
}
