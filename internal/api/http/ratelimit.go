package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/spec-kit/rental-portal/internal/config"
	apperrors "github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

// limiterTTL controls when idle per-IP limiters are forgotten.
const limiterTTL = 10 * time.Minute

// RateLimiter throttles credential-facing endpoints per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
}

// NewRateLimiter builds a limiter from config. Returns nil when the limit is
// disabled; a nil limiter admits everything.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:    burst,
	}
}

// Handle rejects callers that exceed their per-IP budget.
func (l *RateLimiter) Handle(c *fiber.Ctx) error {
	if l == nil {
		return c.Next()
	}
	if !l.limiterFor(c.IP()).Allow() {
		return apperrors.NewRateLimited()
	}
	return c.Next()
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[ip]; ok {
		l.lastSeen[ip] = time.Now()
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	l.lastSeen[ip] = time.Now()
	l.cleanup()
	return limiter
}

func (l *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-limiterTTL)
	for ip, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, ip)
			delete(l.limiters, ip)
		}
	}
}
