package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bkash/send-otp", strings.NewReader(`{"customerPhone":" 01712345678 "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("X-Forwarded-For", "1.2.3.4")

	key := KeyByIPAndJSONField("customerPhone")(c)
	if key != "01712345678|1.2.3.4" {
		t.Fatalf("key want 01712345678|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "01712345678") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestRateLimitMiddlewareInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 2, Message: "Too many OTP requests"}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d want 200 got %d", i, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request want 429 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Too many OTP requests") {
		t.Fatalf("expected rate limit message, got %s", w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestMemoryRateLimiterBlockAndExpiry(t *testing.T) {
	limiter := newMemoryRateLimiter()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	rule := RateLimitRule{WindowSeconds: 60, MaxRequests: 1, BlockSeconds: 300}

	if count, _, _ := limiter.Hit(context.Background(), "k", rule); count != 1 {
		t.Fatalf("first hit want 1 got %d", count)
	}
	count, ttl, _ := limiter.Hit(context.Background(), "k", rule)
	if count != 2 || ttl != 300 {
		t.Fatalf("blocked hit want count=2 ttl=300 got count=%d ttl=%d", count, ttl)
	}

	now = now.Add(2 * time.Minute)
	if count, _, _ := limiter.Hit(context.Background(), "k", rule); count != 3 {
		t.Fatalf("still blocked after window, want 3 got %d", count)
	}

	now = now.Add(5 * time.Minute)
	if count, _, _ := limiter.Hit(context.Background(), "k", rule); count != 1 {
		t.Fatalf("window should reset after block, got %d", count)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("value want %d got %d", tc.want, got)
			}
		})
	}
}
