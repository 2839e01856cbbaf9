package repository

import "time"

// ClickListFilter 点击记录查询条件
type ClickListFilter struct {
	ProductID       uint
	AffiliateUserID uint
}

// ClickDailyRow 按商品按天聚合的点击数
type ClickDailyRow struct {
	ProductID uint
	Day       string
	Total     int64
}

// EarningListFilter 佣金记录查询条件
type EarningListFilter struct {
	AffiliateUserID uint
	Status          string
	Page            int
	PageSize        int
}

// WithdrawalListFilter 提现记录查询条件
type WithdrawalListFilter struct {
	AffiliateUserID uint
	Status          string
	Page            int
	PageSize        int
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
