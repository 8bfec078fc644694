package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTierForRoute(t *testing.T) {
	cases := []struct {
		method, path string
		tier         Tier
		limited      bool
	}{
		{http.MethodGet, "/health", "", false},
		{http.MethodGet, "/swagger/*any", "", false},
		{http.MethodPost, "/api/v1/auth/admin/login", TierAdminLogin, true},
		{http.MethodPost, "/api/v1/auth/sso/handoff", TierAuth, true},
		{http.MethodPost, "/api/v1/bookings", "", false},
		{http.MethodGet, "/api/v1/bookings/mine", TierGlobal, true},
		{http.MethodPut, "/api/v1/bookings/:id", TierAdmin, true},
		{http.MethodDelete, "/api/v1/bookings/:id", TierAdmin, true},
		{http.MethodPost, "/api/v1/bookings/:id/complete", TierAdmin, true},
		{http.MethodGet, "/api/v1/admin/bookings", TierAdmin, true},
		{http.MethodPost, "/api/v1/admin/slots/generate", TierSlots, true},
		{http.MethodGet, "/api/v1/slots", TierSlots, true},
	}
	for _, tc := range cases {
		tier, limited := TierForRoute(tc.method, tc.path)
		assert.Equal(t, tc.limited, limited, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.tier, tier, "%s %s", tc.method, tc.path)
	}
}

func TestClientIdentity(t *testing.T) {
	cases := []struct {
		xff, remote, want string
	}{
		{"", "198.51.100.4:5123", "198.51.100.4"},
		{"203.0.113.7, 10.0.0.1", "10.0.0.2:80", "203.0.113.7"},
		{"not-an-ip, 203.0.113.7", "10.0.0.2:80", "10.0.0.2"},
		{"2001:db8::1", "10.0.0.2:80", "2001:db8::1"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = tc.remote
		if tc.xff != "" {
			c.Request.Header.Set("X-Forwarded-For", tc.xff)
		}
		assert.Equal(t, tc.want, ClientIdentity(c))
	}
}

// Every admin login attempt counts, so once the tier trips the client sees
// 429 and never another 401.
func TestAdminLoginLockout(t *testing.T) {
	rl, _, clk := newTestLimiter(t, map[Tier]Policy{
		TierAdminLogin: {Limit: 5, Window: time.Hour, Message: DefaultMessages[TierAdminLogin]},
	})

	r := gin.New()
	r.Use(Middleware(rl))
	r.POST("/api/v1/auth/admin/login", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials."})
	})

	lastRetry := 1 << 30
	for i := 1; i <= 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/admin/login", nil)
		req.RemoteAddr = "198.51.100.4:5123"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if i <= 5 {
			assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
		} else {
			require.Equal(t, http.StatusTooManyRequests, w.Code, "attempt %d", i)

			var body BlockedResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "rate_limit_exceeded", body.Error)
			assert.LessOrEqual(t, body.RetryAfterSeconds, lastRetry)
			assert.Equal(t, strconv.Itoa(body.RetryAfterSeconds), w.Header().Get("Retry-After"))
			lastRetry = body.RetryAfterSeconds
		}
		clk.Advance(2 * time.Second)
	}
}

func TestBypassSkipsLimits(t *testing.T) {
	rl, _, _ := newTestLimiter(t, map[Tier]Policy{
		TierAdmin: {Limit: 1, Window: time.Hour},
	}, "ops@example.edu")

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextKeyVerifiedEmail, c.GetHeader("X-Test-Email"))
		c.Next()
	})
	r.Use(Middleware(rl))
	r.GET("/api/v1/admin/bookings", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
		req.Header.Set("X-Test-Email", "ops@example.edu")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	codes := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
