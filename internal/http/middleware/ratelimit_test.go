package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// Anonymous requests key on the client IP.
	key := KeyByUserOrIP()(c)
	if !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key; got %q", key)
	}

	// Once Auth has resolved a user the bucket follows the account, not the
	// address.
	c.Set("userID", "u123")
	if key2 := KeyByUserOrIP()(c); key2 != "user:u123" {
		t.Fatalf("expected user-based key; got %q", key2)
	}
}

func TestNewRateLimiter_BurstCoercionAndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByUserOrIP()) // burst<=0 coerced to 1
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}

	lim := rl.getVisitor("user:u1")
	if lim == nil {
		t.Fatalf("expected limiter")
	}
	if got := rl.getVisitor("user:u1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_OpportunisticGC(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond // everything idle is eligible

	rl.mu.Lock()
	rl.visitors["user:stale"] = &visitor{
		limiter:  rate.NewLimiter(1, 1),
		lastSeen: time.Now().Add(-time.Hour),
	}
	rl.cleanupN = 4999 // next lookup crosses the cleanup threshold
	rl.mu.Unlock()

	_ = rl.getVisitor("user:fresh")

	rl.mu.Lock()
	_, staleLeft := rl.visitors["user:stale"]
	_, freshMade := rl.visitors["user:fresh"]
	rl.mu.Unlock()

	if staleLeft {
		t.Fatalf("expected stale visitor to be evicted")
	}
	if !freshMade {
		t.Fatalf("expected fresh visitor to be created")
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=true when set")
	}
	// A non-bool value reads as false rather than panicking.
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false when non-bool stored")
	}
}

func TestRateLimiter_AllowDenyEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// rps=1, burst=1: first immediate request allowed, second denied.
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.GET("/characters", func(c *gin.Context) { c.String(http.StatusOK, "[]") })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/characters", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/characters", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["message"] != "rate limit exceeded" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
}

func TestRateLimiter_AdminBypassSkipsTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Exhausted bucket: without the bypass every request would be denied.
	rl := NewRateLimiter(0.0001, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(AdminBypass("ops-secret"))
	r.Use(rl.Handler())
	r.POST("/admin/avatars/migrate", func(c *gin.Context) { c.Status(http.StatusOK) })

	drain := httptest.NewRequest(http.MethodPost, "/admin/avatars/migrate", nil)
	r.ServeHTTP(httptest.NewRecorder(), drain)

	// Secret-bearing request passes even with no tokens left.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/avatars/migrate", nil)
	req.Header.Set("X-Admin-Secret", "ops-secret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin-gated request should bypass limiter, got %d", w.Code)
	}

	// Without the secret the drained bucket denies.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/avatars/migrate", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("unauthenticated request should be limited, got %d", w.Code)
	}
}
