package models

import "time"

// OrderItem 订单项表
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                               // 主键
	OrderID   uint      `gorm:"index;not null" json:"orderId"`                      // 订单ID
	ProductID uint      `gorm:"index;not null" json:"productId"`                    // 商品ID
	Name      string    `gorm:"type:varchar(255)" json:"name"`                      // 商品名称快照
	Slug      string    `gorm:"type:varchar(255)" json:"slug"`                      // 商品标识快照
	Category  string    `gorm:"type:varchar(120)" json:"category"`                  // 分类快照
	Price     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 单价
	Quantity  int       `gorm:"not null" json:"quantity"`                           // 数量
	CreatedAt time.Time `gorm:"index" json:"createdAt"`                             // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
