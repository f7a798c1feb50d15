package router

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/internal/models"
)

func TestRoutes(t *testing.T) {
	routes := Routes(New(Config{CORS: true}))
	sort.Strings(routes)
	want := []string{
		"GET /api/v1/health",
		"GET /metrics",
		"POST /api/v1/acknowledgments",
		"POST /api/v1/acknowledgments/consume",
		"POST /api/v1/engine/{entryPoint}",
		"POST /api/v1/vat/cart",
	}
	if strings.Join(routes, "\n") != strings.Join(want, "\n") {
		t.Errorf("unexpected routes:\n%s", strings.Join(routes, "\n"))
	}
}

func TestSubjectMiddleware(t *testing.T) {
	var got acknowledgment.Subject
	h := SubjectMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(models.ContextKeySubject).(acknowledgment.Subject)
	}))

	req := httptest.NewRequest("POST", "/api/v1/vat/cart", nil)
	req.Header.Set(models.HeaderUserID, " u-42 ")
	req.Header.Set(models.HeaderSessionID, "s-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got.UserID != "u-42" || got.SessionID != "s-1" {
		t.Errorf("unexpected subject %+v", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/vat/cart", nil))
	if got.UserID != "" || got.SessionID != "" {
		t.Errorf("anonymous caller expected, got %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	New(Config{}).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("unexpected status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("default collectors are not exposed")
	}
}
