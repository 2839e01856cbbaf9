package repository

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// dayExpr 构建按天分组的表达式，兼容 sqlite 与 postgres。
func dayExpr(db *gorm.DB, column string) string {
	return dayExprByDialect(dbDialectName(db), column)
}

func dayExprByDialect(dialect, column string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", column)
	default:
		return fmt.Sprintf("CAST(date(%s) AS TEXT)", column)
	}
}

// sumExpr 构建金额求和表达式，空集返回 0。
func sumExpr(column string) string {
	return fmt.Sprintf("COALESCE(SUM(%s), 0) AS total", column)
}

// scanSum 执行金额求和查询并保留 2 位小数
func scanSum(query *gorm.DB, column string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.Select(sumExpr(column)).Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
