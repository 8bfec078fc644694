package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/logger"
)

type Tier string

const (
	TierGlobal     Tier = "global"
	TierAuth       Tier = "auth"
	TierBooking    Tier = "booking"
	TierAdmin      Tier = "admin"
	TierSlots      Tier = "slots"
	TierAdminLogin Tier = "admin_login"
)

// Policy is the ceiling and window of one tier
type Policy struct {
	Limit   int
	Window  time.Duration
	Message string
}

// Config holds the tier table
type Config struct {
	Enabled  bool
	Policies map[Tier]Policy
	// Verified identities (lower-case emails) that skip every tier
	BypassIdentities []string
}

// DefaultMessages are the client-facing texts per tier
var DefaultMessages = map[Tier]string{
	TierGlobal:     "Too many requests. Please try again later.",
	TierAuth:       "Too many authentication attempts. Please wait 15 minutes.",
	TierBooking:    "Too many booking attempts. Please wait before trying again.",
	TierAdmin:      "Rate limit exceeded for admin operations.",
	TierSlots:      "Too many slot operations. Please wait.",
	TierAdminLogin: "Too many login attempts. Please try again later.",
}

// Decision represents rate limit check result
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
	ResetTime         int64
	Message           string
}

// Counter document fields
const (
	fieldWindowStart = "window_start"
	fieldCount       = "count"
)

// RateLimiter counts requests per (tier, identity) in fixed windows held in
// the shared store
type RateLimiter struct {
	store  atomicstore.Store
	config *Config
	bypass map[string]struct{}
	log    *logger.Logger
	now    func() time.Time
}

func NewRateLimiter(store atomicstore.Store, config *Config) *RateLimiter {
	bypass := make(map[string]struct{}, len(config.BypassIdentities))
	for _, id := range config.BypassIdentities {
		bypass[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}
	return &RateLimiter{
		store:  store,
		config: config,
		bypass: bypass,
		log:    logger.GetDefault().WithComponent("ratelimit"),
		now:    time.Now,
	}
}

// IsBypassed reports whether a verified identity skips rate limiting
func (r *RateLimiter) IsBypassed(identity string) bool {
	if identity == "" {
		return false
	}
	_, ok := r.bypass[strings.ToLower(identity)]
	return ok
}

// Policy returns the policy for tier
func (r *RateLimiter) Policy(tier Tier) (Policy, bool) {
	p, ok := r.config.Policies[tier]
	return p, ok
}

// Check counts one request from identity against tier. Store failures and
// a second lost race allow the request.
func (r *RateLimiter) Check(ctx context.Context, tier Tier, identity string) Decision {
	policy, ok := r.config.Policies[tier]
	if !ok || !r.config.Enabled || policy.Limit <= 0 {
		return r.open(policy)
	}

	key := counterKey(tier, identity)
	for attempt := 0; attempt < 2; attempt++ {
		decision, done, err := r.attempt(ctx, key, policy)
		if err != nil {
			r.log.WarnContext(ctx, "rate limit check failed, allowing request",
				"tier", string(tier),
				"error", err,
			)
			return r.open(policy)
		}
		if done {
			return decision
		}
	}

	r.log.DebugContext(ctx, "rate limit counter contended, allowing request", "tier", string(tier))
	return r.open(policy)
}

// attempt performs one read-compare-write. done is false when another
// request updated the counter between the read and the write.
func (r *RateLimiter) attempt(ctx context.Context, key string, policy Policy) (Decision, bool, error) {
	now := r.now()

	fields, found, err := r.store.Get(ctx, key)
	if err != nil {
		return Decision{}, false, err
	}

	cond := atomicstore.NotExists()
	windowStart := now
	count := 0
	if found {
		cond = atomicstore.Matches(map[string]string{
			fieldWindowStart: fields[fieldWindowStart],
			fieldCount:       fields[fieldCount],
		})
		if start, n, ok := parseCounter(fields); ok {
			// A start ahead of this instance's clock is skew from another
			// instance and still counts as the current window
			if now.Sub(start) < policy.Window {
				windowStart = start
				count = n
			}
		}
	}

	resetAt := windowStart.Add(policy.Window)
	if count >= policy.Limit {
		return Decision{
			Allowed:           false,
			Limit:             policy.Limit,
			Remaining:         0,
			RetryAfterSeconds: retryAfter(resetAt.Sub(now)),
			ResetTime:         resetAt.Unix(),
			Message:           policy.Message,
		}, true, nil
	}

	count++
	res, err := r.store.ConditionalWrite(ctx, key, cond, atomicstore.Mutation{
		Set: map[string]string{
			fieldWindowStart: strconv.FormatInt(windowStart.UnixMilli(), 10),
			fieldCount:       strconv.Itoa(count),
		},
		TTL: resetAt.Sub(now),
	})
	if err != nil {
		return Decision{}, false, err
	}
	if !res.Applied {
		return Decision{}, false, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetTime: resetAt.Unix(),
	}, true, nil
}

func (r *RateLimiter) open(policy Policy) Decision {
	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit,
		ResetTime: r.now().Add(policy.Window).Unix(),
	}
}

func counterKey(tier Tier, identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s", tier, identity)
}

func parseCounter(fields map[string]string) (time.Time, int, bool) {
	ms, err := strconv.ParseInt(fields[fieldWindowStart], 10, 64)
	if err != nil {
		return time.Time{}, 0, false
	}
	count, err := strconv.Atoi(fields[fieldCount])
	if err != nil || count < 0 {
		return time.Time{}, 0, false
	}
	return time.UnixMilli(ms), count, true
}

// retryAfter rounds up to whole seconds, never below one
func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
