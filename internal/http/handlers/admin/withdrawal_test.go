package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/provider"
	"github.com/NishadApi25/final-year-project/internal/repository"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWithdrawalListEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_withdrawal_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	withdrawalRepo := repository.NewWithdrawalRepository(db)
	for _, day := range []int{1, 5, 9} {
		w := &models.AffiliateWithdrawal{
			AffiliateUserID: 7,
			Amount:          models.NewMoneyFromDecimal(decimal.RequireFromString("12.50")),
			Status:          constants.WithdrawalStatusPending,
			RequestedAt:     time.Date(2026, 4, day, 9, 30, 0, 0, time.UTC),
		}
		if err := withdrawalRepo.Create(w); err != nil {
			t.Fatalf("create withdrawal failed: %v", err)
		}
	}

	c := &provider.Container{
		Config:         &config.Config{},
		WithdrawalRepo: withdrawalRepo,
		EarningRepo:    repository.NewEarningRepository(db),
		UserRepo:       repository.NewUserRepository(db),
	}
	c.WithdrawalService = service.NewWithdrawalService(c.WithdrawalRepo, c.EarningRepo, c.UserRepo, service.WithdrawalOptions{
		BalanceStatuses: []string{"confirmed", "paid"},
	}, nil)
	engine := gin.New()
	engine.GET("/api/admin/withdrawals", New(c).ListWithdrawals)
	return engine
}

func getWithdrawals(t *testing.T, engine *gin.Engine, query string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/withdrawals?"+query, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	payload := map[string]interface{}{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return w.Code, payload
}

func TestListWithdrawalsFiltersByRequestedDate(t *testing.T) {
	engine := setupWithdrawalListEngine(t)

	code, body := getWithdrawals(t, engine, "")
	if code != http.StatusOK {
		t.Fatalf("list want 200 got %d %v", code, body)
	}
	if records, _ := body["records"].([]interface{}); len(records) != 3 {
		t.Fatalf("unfiltered list want 3 records got %v", body["records"])
	}

	code, body = getWithdrawals(t, engine, "created_from=2026-04-05&created_to=2026-04-05")
	if code != http.StatusOK {
		t.Fatalf("date range want 200 got %d %v", code, body)
	}
	if records, _ := body["records"].([]interface{}); len(records) != 1 {
		t.Fatalf("single day range want 1 record got %v", body["records"])
	}

	code, body = getWithdrawals(t, engine, "created_from=2026-04-02T00:00:00Z")
	if code != http.StatusOK {
		t.Fatalf("rfc3339 from want 200 got %d %v", code, body)
	}
	if records, _ := body["records"].([]interface{}); len(records) != 2 {
		t.Fatalf("open ended range want 2 records got %v", body["records"])
	}

	code, body = getWithdrawals(t, engine, "created_to=yesterday")
	if code != http.StatusBadRequest || body["message"] != "Invalid created_to" {
		t.Fatalf("invalid created_to want 400 got %d %v", code, body)
	}
}
