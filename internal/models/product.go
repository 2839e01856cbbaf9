package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表（结算与推广链接只读引用）
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`                               // 主键
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`             // 名称
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`                   // 唯一标识
	Category    string         `gorm:"type:varchar(120);index" json:"category"`            // 分类名称（佣金比例依据）
	Image       string         `gorm:"type:varchar(1024)" json:"image"`                    // 主图
	Price       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 价格
	IsPublished bool           `gorm:"default:true;index" json:"isPublished"`              // 是否上架
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`                             // 创建时间
	UpdatedAt   time.Time      `json:"updatedAt"`                                          // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
