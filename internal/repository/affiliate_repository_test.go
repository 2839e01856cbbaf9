package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openAffiliateTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:affiliate_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func TestSettlementOrderIsUnique(t *testing.T) {
	db := openAffiliateTestDB(t)
	repo := NewEarningRepository(db)

	first := &models.AffiliateSettlement{OrderID: 10, AffiliateUserID: 7, Source: constants.SettlementSourceManual}
	if err := repo.CreateSettlement(first); err != nil {
		t.Fatalf("create settlement failed: %v", err)
	}
	dup := &models.AffiliateSettlement{OrderID: 10, AffiliateUserID: 7, Source: constants.SettlementSourceBkash}
	if err := repo.CreateSettlement(dup); err == nil {
		t.Fatalf("expected unique violation for duplicate order settlement")
	}

	var rows []models.AffiliateSettlement
	if err := db.Where("order_id = ?", 10).Find(&rows).Error; err != nil {
		t.Fatalf("query settlement failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 settlement row got %d", len(rows))
	}
	if rows[0].Source != constants.SettlementSourceManual {
		t.Fatalf("first settlement should win, got source %s", rows[0].Source)
	}
}

func TestEarningSumsAndDistinctOrders(t *testing.T) {
	repo := NewEarningRepository(openAffiliateTestDB(t))
	money := func(raw string) models.Money {
		return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
	}
	earnings := []models.AffiliateEarning{
		{AffiliateUserID: 7, OrderID: 1, OrderItemID: 1, ProductID: 1, OrderAmount: money("100"), CommissionPercent: money("5"), CommissionAmount: money("5.00"), Status: constants.EarningStatusConfirmed},
		{AffiliateUserID: 7, OrderID: 1, OrderItemID: 2, ProductID: 2, OrderAmount: money("75.50"), CommissionPercent: money("10"), CommissionAmount: money("7.55"), Status: constants.EarningStatusPaid},
		{AffiliateUserID: 7, OrderID: 2, OrderItemID: 3, ProductID: 1, OrderAmount: money("20"), CommissionPercent: money("5"), CommissionAmount: money("1.00"), Status: constants.EarningStatusPending},
		{AffiliateUserID: 8, OrderID: 3, OrderItemID: 4, ProductID: 1, OrderAmount: money("20"), CommissionPercent: money("5"), CommissionAmount: money("1.00"), Status: constants.EarningStatusConfirmed},
	}
	if err := repo.CreateBatch(earnings); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}
	dup := []models.AffiliateEarning{{AffiliateUserID: 7, OrderID: 1, OrderItemID: 1, ProductID: 1, Status: constants.EarningStatusConfirmed}}
	if err := repo.CreateBatch(dup); err == nil {
		t.Fatalf("expected unique violation for duplicate order item")
	}

	all, err := repo.SumCommission(7, nil)
	if err != nil {
		t.Fatalf("sum all failed: %v", err)
	}
	if all.StringFixed(2) != "13.55" {
		t.Fatalf("sum all want 13.55 got %s", all.StringFixed(2))
	}
	balance, err := repo.SumCommission(7, []string{constants.EarningStatusConfirmed, constants.EarningStatusPaid})
	if err != nil {
		t.Fatalf("sum balance failed: %v", err)
	}
	if balance.StringFixed(2) != "12.55" {
		t.Fatalf("sum balance want 12.55 got %s", balance.StringFixed(2))
	}
	none, err := repo.SumCommission(99, nil)
	if err != nil || !none.IsZero() {
		t.Fatalf("empty sum want 0 got %s (%v)", none, err)
	}

	orders, err := repo.CountDistinctOrders(7)
	if err != nil || orders != 2 {
		t.Fatalf("distinct orders want 2 got %d (%v)", orders, err)
	}

	rows, total, err := repo.List(EarningListFilter{AffiliateUserID: 7, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("list want total=3 len=2 got total=%d len=%d", total, len(rows))
	}
}

func TestClickDailyCountsByProduct(t *testing.T) {
	repo := NewClickRepository(openAffiliateTestDB(t))
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	clicks := []models.AffiliateClick{
		{ProductID: 1, AffiliateUserID: 7, ClickedAt: now},
		{ProductID: 1, AffiliateUserID: 7, ClickedAt: now.Add(-2 * time.Hour)},
		{ProductID: 1, AffiliateUserID: 8, ClickedAt: now.AddDate(0, 0, -1)},
		{ProductID: 2, AffiliateUserID: 7, ClickedAt: now.AddDate(0, 0, -1)},
		{ProductID: 2, AffiliateUserID: 7, ClickedAt: now.AddDate(0, 0, -45)},
	}
	for i := range clicks {
		if err := repo.Create(&clicks[i]); err != nil {
			t.Fatalf("create click failed: %v", err)
		}
	}

	rows, err := repo.DailyCountsByProduct(0, now.AddDate(0, 0, -29).Truncate(24*time.Hour))
	if err != nil {
		t.Fatalf("daily counts failed: %v", err)
	}
	got := map[string]int64{}
	for _, row := range rows {
		got[fmt.Sprintf("%d@%s", row.ProductID, row.Day)] = row.Total
	}
	want := map[string]int64{
		"1@2026-10-15": 1,
		"1@2026-10-16": 2,
		"2@2026-10-15": 1,
	}
	if len(got) != len(want) {
		t.Fatalf("daily rows mismatch, want %v got %v", want, got)
	}
	for key, total := range want {
		if got[key] != total {
			t.Fatalf("daily count %s want %d got %d", key, total, got[key])
		}
	}

	mine, err := repo.DailyCountsByProduct(8, now.AddDate(0, 0, -6))
	if err != nil {
		t.Fatalf("daily counts by affiliate failed: %v", err)
	}
	if len(mine) != 1 || mine[0].Total != 1 {
		t.Fatalf("affiliate 8 should have one bucket, got %+v", mine)
	}

	count, err := repo.CountByAffiliate(7)
	if err != nil || count != 4 {
		t.Fatalf("count by affiliate want 4 got %d (%v)", count, err)
	}
}

func TestWithdrawalSumByStatus(t *testing.T) {
	repo := NewWithdrawalRepository(openAffiliateTestDB(t))
	now := time.Now()
	for _, item := range []struct {
		amount string
		status string
	}{
		{"30.00", constants.WithdrawalStatusPending},
		{"20.50", constants.WithdrawalStatusPending},
		{"10.00", constants.WithdrawalStatusPaid},
		{"99.00", constants.WithdrawalStatusRejected},
	} {
		w := &models.AffiliateWithdrawal{
			AffiliateUserID: 7,
			Amount:          models.NewMoneyFromDecimal(decimal.RequireFromString(item.amount)),
			Status:          item.status,
			RequestedAt:     now,
		}
		if err := repo.Create(w); err != nil {
			t.Fatalf("create withdrawal failed: %v", err)
		}
	}

	pending, err := repo.SumByStatus(7, constants.WithdrawalStatusPending)
	if err != nil || pending.StringFixed(2) != "50.50" {
		t.Fatalf("pending sum want 50.50 got %s (%v)", pending.StringFixed(2), err)
	}
	paid, err := repo.SumByStatus(7, constants.WithdrawalStatusPaid)
	if err != nil || paid.StringFixed(2) != "10.00" {
		t.Fatalf("paid sum want 10.00 got %s (%v)", paid.StringFixed(2), err)
	}

	rows, total, err := repo.List(WithdrawalListFilter{Status: constants.WithdrawalStatusPending})
	if err != nil || total != 2 || len(rows) != 2 {
		t.Fatalf("pending list want 2 got total=%d len=%d (%v)", total, len(rows), err)
	}
}

func TestWithdrawalListRequestedAtRange(t *testing.T) {
	repo := NewWithdrawalRepository(openAffiliateTestDB(t))
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		w := &models.AffiliateWithdrawal{
			AffiliateUserID: 7,
			Amount:          models.NewMoneyFromDecimal(decimal.RequireFromString("5")),
			Status:          constants.WithdrawalStatusPending,
			RequestedAt:     base.AddDate(0, 0, i),
		}
		if err := repo.Create(w); err != nil {
			t.Fatalf("create withdrawal failed: %v", err)
		}
	}

	from := base.AddDate(0, 0, 1)
	rows, total, err := repo.List(WithdrawalListFilter{CreatedFrom: &from})
	if err != nil || total != 2 || len(rows) != 2 {
		t.Fatalf("from filter want 2 got total=%d len=%d (%v)", total, len(rows), err)
	}
	to := base.AddDate(0, 0, 1)
	rows, total, err = repo.List(WithdrawalListFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("range filter want 1 got total=%d len=%d (%v)", total, len(rows), err)
	}
	if !rows[0].RequestedAt.Equal(from) {
		t.Fatalf("unexpected row requested at %v", rows[0].RequestedAt)
	}
}
