package models

import "time"

// AffiliateClick 推广点击记录（只写不改）
type AffiliateClick struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                // 主键
	AffiliateUserID uint      `gorm:"not null;index" json:"affiliateUserId"`               // 推广用户ID
	ProductID       uint      `gorm:"not null;index" json:"productId"`                     // 商品ID
	IPAddress       string    `gorm:"type:varchar(64)" json:"ipAddress,omitempty"`         // 客户端IP
	ClickedAt       time.Time `gorm:"index;not null" json:"clickedAt"`                     // 点击时间
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"` // 创建时间
}

// TableName 指定表名
func (AffiliateClick) TableName() string {
	return "affiliate_clicks"
}
