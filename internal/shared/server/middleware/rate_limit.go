package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"

	// GenerationGroup covers routes that call the external generation service.
	GenerationGroup = "GENERATION"

	bucketIdleTTL = 10 * time.Minute
)

// RateLimitRule is a token bucket refilled at Rate tokens per second.
// A zero Rate or Burst disables the limit.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

func (r RateLimitRule) unlimited() bool {
	return r.Rate <= 0 || r.Burst <= 0
}

// PerMinute converts a requests-per-minute budget into a rule whose burst
// equals the minute budget.
func PerMinute(n int) RateLimitRule {
	if n <= 0 {
		return RateLimitRule{}
	}
	return RateLimitRule{Rate: float64(n) / 60.0, Burst: n}
}

// RateLimitConfig selects a rule per request. Requests in a group without a
// rule pass through.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// GroupForRoutes maps "METHOD /route/:pattern" keys to rate-limit groups.
// Unmatched routes fall into the default group.
func GroupForRoutes(routes map[string]string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return routes[c.Request.Method+" "+c.FullPath()]
	}
}

// RateLimit rejects requests over budget with 429 and a Retry-After header.
// Signed-in callers are identified by user id; guests and requests that
// reach the limiter before auth are identified by client IP.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.unlimited() {
			c.Next()
			return
		}

		wait := cfg.Limiter.Take(principalFor(c), group, rule)
		if wait == 0 {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(ceilSeconds(wait)))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests", gin.H{
			"group":        group,
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// principalFor keys guests on client IP, since a guest can mint a new
// X-Guest-Id on every request.
func principalFor(c *gin.Context) string {
	if IsGuest(c) {
		return "guest-ip:" + c.ClientIP()
	}
	if id := strings.TrimSpace(UserIDFromContext(c)); id != "" {
		return id
	}
	return "ip:" + c.ClientIP()
}

func ceilSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// RateLimiter holds one token bucket per principal and group.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[bucketKey]*bucket
	now       func() time.Time
	lastSweep time.Time
}

type bucketKey struct {
	principal string
	group     string
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter returns an empty limiter. A nil clock means time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[bucketKey]*bucket),
		now:     now,
	}
}

// Take spends one token from the principal's bucket for group. It returns
// zero when the request may proceed, otherwise how long until a token is
// available.
func (l *RateLimiter) Take(principal, group string, rule RateLimitRule) time.Duration {
	if l == nil || rule.unlimited() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	key := bucketKey{principal: principal, group: group}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rule.Burst), seen: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	missing := 1 - b.tokens
	return time.Duration(missing / rule.Rate * float64(time.Second))
}

// sweep drops buckets untouched for bucketIdleTTL. Caller holds l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketIdleTTL {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= bucketIdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
