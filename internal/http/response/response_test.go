package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSuccessMergesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Created(c, gin.H{"clickId": 12})

	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body["success"] != true || body["clickId"] != float64(12) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestErrorAttachesRequestIDAndDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	ErrorWithDebug(c, CodeBadGateway, "bKash gateway is unreachable", "dial tcp: timeout")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body["success"] != false || body["request_id"] != "req-1" || body["debug"] != "dial tcp: timeout" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !c.IsAborted() {
		t.Fatalf("expected context to be aborted")
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	if p.TotalPage != 3 {
		t.Fatalf("unexpected total page: %d", p.TotalPage)
	}
}
