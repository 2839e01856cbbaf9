package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if strings.TrimSpace(w2.Header().Get(requestIDHeader)) == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

type adminAuthFixture struct {
	engine *gin.Engine
	auth   *service.AuthService
	repo   *repository.GormAdminRepository
}

func setupAdminAuthFixture(t *testing.T) *adminAuthFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:router_admin_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	repo := repository.NewAdminRepository(db)
	auth := service.NewAuthService(&config.JWTConfig{SecretKey: "router-secret", ExpireHours: 1}, repo)

	r := gin.New()
	admin := r.Group("/api/admin")
	admin.Use(JWTAuthMiddleware(auth, repo), AdminRBACMiddleware(authzService))
	admin.GET("/affiliate/withdrawals", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	admin.PATCH("/affiliate/withdrawals/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return &adminAuthFixture{engine: r, auth: auth, repo: repo}
}

func (f *adminAuthFixture) token(t *testing.T, role string, isSuper bool) string {
	t.Helper()
	admin := &models.Admin{Username: fmt.Sprintf("%s_%d", role, time.Now().UnixNano()), PasswordHash: "x", Role: role, IsSuper: isSuper}
	if err := f.repo.Create(admin); err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	token, _, err := f.auth.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("generate jwt failed: %v", err)
	}
	return token
}

func (f *adminAuthFixture) call(method, path, token string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.engine.ServeHTTP(w, req)
	return w.Code
}

func TestAdminMiddlewareChain(t *testing.T) {
	f := setupAdminAuthFixture(t)

	if code := f.call(http.MethodGet, "/api/admin/affiliate/withdrawals", ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token want 401 got %d", code)
	}
	if code := f.call(http.MethodGet, "/api/admin/affiliate/withdrawals", "garbage"); code != http.StatusUnauthorized {
		t.Fatalf("bad token want 401 got %d", code)
	}

	auditor := f.token(t, "readonly_auditor", false)
	if code := f.call(http.MethodGet, "/api/admin/affiliate/withdrawals", auditor); code != http.StatusOK {
		t.Fatalf("auditor list want 200 got %d", code)
	}
	if code := f.call(http.MethodPatch, "/api/admin/affiliate/withdrawals/1", auditor); code != http.StatusForbidden {
		t.Fatalf("auditor review want 403 got %d", code)
	}

	finance := f.token(t, "finance", false)
	if code := f.call(http.MethodPatch, "/api/admin/affiliate/withdrawals/1", finance); code != http.StatusOK {
		t.Fatalf("finance review want 200 got %d", code)
	}

	super := f.token(t, "nobody", true)
	if code := f.call(http.MethodPatch, "/api/admin/affiliate/withdrawals/1", super); code != http.StatusOK {
		t.Fatalf("super admin want 200 got %d", code)
	}
}
