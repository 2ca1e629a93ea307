package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(handlers...)
	router.POST("/test", func(c *gin.Context) {
		actor := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role, "request_id": RequestIDFrom(c)})
	})
	return router
}

func TestIdentity(t *testing.T) {
	router := newTestRouter(Identity())

	tests := []struct {
		name   string
		userID string
		role   string
		code   int
	}{
		{"missing id", "", "admin", http.StatusUnauthorized},
		{"blank id", "   ", "", http.StatusUnauthorized},
		{"teacher", "u1", "teacher", http.StatusOK},
		{"role is normalised", "u2", " ADMIN ", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			req.Header.Set(userIDHeader, tt.userID)
			req.Header.Set(userRoleHeader, tt.role)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, w.Code)
			}
			if tt.role == " ADMIN " && !strings.Contains(w.Body.String(), `"role":"admin"`) {
				t.Errorf("expected lower-cased role, got %s", w.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	router := newTestRouter(Identity(), RequireAdmin())

	for role, code := range map[string]int{
		"admin":   http.StatusOK,
		"system":  http.StatusOK,
		"teacher": http.StatusForbidden,
		"":        http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set(userIDHeader, "u1")
		req.Header.Set(userRoleHeader, role)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != code {
			t.Errorf("role %q: expected status %d, got %d", role, code, w.Code)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := newTestRouter(RateLimiter(ctx, 3))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Limits are tracked per client address.
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected other client to pass, got %d", w.Code)
	}
}

func TestRateLimiter_PerUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := newTestRouter(Identity(), RateLimiter(ctx, 1))

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set(userIDHeader, user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("u1"); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if code := send("u1"); code != http.StatusTooManyRequests {
		t.Errorf("expected second request from u1 to be limited, got %d", code)
	}
	// Same address, different user.
	if code := send("u2"); code != http.StatusOK {
		t.Errorf("expected u2 to have its own window, got %d", code)
	}
}

func TestJSONBody(t *testing.T) {
	router := newTestRouter(JSONBody(16))

	tests := []struct {
		name        string
		body        string
		contentType string
		code        int
	}{
		{"empty body", "", "", http.StatusOK},
		{"small json", "{}", "application/json; charset=utf-8", http.StatusOK},
		{"no content type", "{}", "", http.StatusOK},
		{"too large", strings.Repeat("x", 32), "application/json", http.StatusRequestEntityTooLarge},
		{"form body", "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(RequestID())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))
	generated := w.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatal("expected a generated request id header")
	}

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("expected propagated request id, got %q", got)
	}
	if !strings.Contains(w.Body.String(), "req-123") {
		t.Errorf("expected request id in context, got %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("a", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("expected oversized request id to be replaced, got %d chars", len(got))
	}
}
