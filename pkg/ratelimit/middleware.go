package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyVerifiedEmail is where the auth layer leaves the caller's
// verified email for the bypass check
const ContextKeyVerifiedEmail = "user_email"

// BlockedResponse is the 429 body
type BlockedResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// Middleware applies the tier chosen by TierForRoute to the client's
// network identity
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateLimiter.IsBypassed(c.GetString(ContextKeyVerifiedEmail)) {
			c.Next()
			return
		}

		tier, limited := TierForRoute(c.Request.Method, c.FullPath())
		if !limited {
			c.Next()
			return
		}

		clientIP := ClientIdentity(c)
		decision := rateLimiter.Check(c.Request.Context(), tier, clientIP)

		WriteHeaders(c, decision)

		if !decision.Allowed {
			rateLimiter.log.LogRateLimitExceeded(c.Request.Context(), string(tier), clientIP, decision.RetryAfterSeconds)
			AbortBlocked(c, decision)
			return
		}

		c.Next()
	}
}

// WriteHeaders sets the X-RateLimit-* headers
func WriteHeaders(c *gin.Context, d Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime, 10))
}

// AbortBlocked writes the 429 response with a Retry-After header
func AbortBlocked(c *gin.Context, d Decision) {
	c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, BlockedResponse{
		Success:           false,
		Error:             "rate_limit_exceeded",
		Message:           d.Message,
		RetryAfterSeconds: d.RetryAfterSeconds,
	})
}

// TierForRoute picks the tier for a matched route. Booking creation is
// limited inside the booking flow, per device and per network identity, so
// it is not limited here.
func TierForRoute(method, path string) (Tier, bool) {
	switch {
	case path == "",
		strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/swagger"):
		return "", false

	case strings.HasSuffix(path, "/auth/admin/login"):
		return TierAdminLogin, true

	case strings.Contains(path, "/auth/"):
		return TierAuth, true

	case strings.HasSuffix(path, "/bookings") && method == http.MethodPost:
		return "", false

	case strings.Contains(path, "/admin/slots"):
		return TierSlots, true

	case strings.Contains(path, "/admin/"),
		strings.Contains(path, "/bookings/") && method != http.MethodGet:
		return TierAdmin, true

	case strings.Contains(path, "/slots"):
		return TierSlots, true

	default:
		return TierGlobal, true
	}
}

// ClientIdentity returns the left-most X-Forwarded-For address when it
// parses as an IP, else the direct peer address
func ClientIdentity(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		ip := strings.TrimSpace(first)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return ip
}
