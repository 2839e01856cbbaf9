package service

import (
	"strings"

	"github.com/NishadApi25/final-year-project/internal/constants"

	"github.com/shopspring/decimal"
)

// CommissionRule 分类关键词对应的佣金比例
type CommissionRule struct {
	Keywords []string
	Percent  decimal.Decimal
}

// CommissionRules 有序规则表，命中第一条即返回
type CommissionRules struct {
	Rules          []CommissionRule
	DefaultPercent decimal.Decimal
}

// CommissionItem 参与计算的订单项
type CommissionItem struct {
	Price    decimal.Decimal
	Quantity int
	Category string
}

// Commission 计算结果
type Commission struct {
	Percent     decimal.Decimal
	OrderAmount decimal.Decimal
	Amount      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// DefaultCommissionRules 默认规则：鞋 5%，牛仔裤/裤子 7%，手表 10%，其余 10%
func DefaultCommissionRules() CommissionRules {
	return CommissionRules{
		Rules: []CommissionRule{
			{Keywords: []string{"shoe"}, Percent: decimal.NewFromInt(5)},
			{Keywords: []string{"jean", "pant"}, Percent: decimal.NewFromInt(7)},
			{Keywords: []string{"watch"}, Percent: decimal.NewFromInt(10)},
		},
		DefaultPercent: decimal.NewFromInt(constants.DefaultCommissionPercent),
	}
}

// PercentFor 按分类匹配佣金比例，大小写不敏感的子串匹配
func (r CommissionRules) PercentFor(category string) decimal.Decimal {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return r.DefaultPercent
	}
	for _, rule := range r.Rules {
		for _, keyword := range rule.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(c, keyword) {
				return rule.Percent
			}
		}
	}
	return r.DefaultPercent
}

// Compute 计算单个订单项佣金
func (r CommissionRules) Compute(item CommissionItem) Commission {
	percent := r.PercentFor(item.Category)
	quantity := item.Quantity
	if quantity < 0 {
		quantity = 0
	}
	orderAmount := item.Price.Mul(decimal.NewFromInt(int64(quantity)))
	return Commission{
		Percent:     percent,
		OrderAmount: orderAmount.Round(2),
		Amount:      orderAmount.Mul(percent).Div(hundred).Round(2),
	}
}

// ComputeCommission 使用默认规则计算佣金
func ComputeCommission(item CommissionItem) Commission {
	return DefaultCommissionRules().Compute(item)
}
