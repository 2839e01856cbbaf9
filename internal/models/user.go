package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（推广用户身份来源）
type User struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                 // 主键
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`                    // 邮箱
	Name        string         `gorm:"type:varchar(120);default:''" json:"name"`             // 昵称
	Role        string         `gorm:"type:varchar(32);not null;default:'user'" json:"role"` // 角色
	IsAffiliate bool           `gorm:"not null;default:false;index" json:"isAffiliate"`      // 推广资格标记
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`                               // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updatedAt"`                               // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
