package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表（结算时只读一次）
type Order struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                     // 主键
	UserID          uint           `gorm:"index" json:"userId,omitempty"`                            // 下单用户ID
	AffiliateUserID *uint          `gorm:"index" json:"affiliateUserId,omitempty"`                   // 下单时记录的推广用户
	TotalAmount     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"totalAmount"` // 实付金额
	PaymentMethod   string         `gorm:"type:varchar(32)" json:"paymentMethod"`                    // 支付方式
	IsPaid          bool           `gorm:"not null;default:false;index" json:"isPaid"`               // 是否已支付
	PaidAt          *time.Time     `gorm:"index" json:"paidAt,omitempty"`                            // 支付时间
	PaymentResult   JSON           `gorm:"type:json" json:"paymentResult,omitempty"`                 // 支付结果快照
	CreatedAt       time.Time      `gorm:"index" json:"createdAt"`                                   // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updatedAt"`                                   // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
