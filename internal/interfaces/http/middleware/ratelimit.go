package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key. A client may burst up to
// the full allowance, which refills evenly over the window.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each client
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idleTTL: 2 * window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// StartCleanup drops clients idle for two windows until ctx ends or Stop is called
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.idleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.evictIdle()
			}
		}
	}()
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idleTTL)
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = rl.now()
	return cl.limiter
}

// Reserve takes one token for key. It reports whether the request may proceed,
// the tokens left and how long to wait otherwise.
func (rl *RateLimiter) Reserve(key string) (bool, int, time.Duration) {
	limiter := rl.limiterFor(key)
	now := rl.now()
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	remaining := int(math.Max(0, math.Floor(limiter.TokensAt(now))))
	return true, remaining, 0
}

// Allow reports whether a request from key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	ok, _, _ := rl.Reserve(key)
	return ok
}

// RateLimit limits requests per authenticated tenant, falling back to the
// client IP on public routes.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	limit := strconv.Itoa(rl.burst)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if tenantID, ok := GetTenantID(c); ok {
			key = "tenant:" + tenantID.String()
		}

		ok, remaining, retryAfter := rl.Reserve(key)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			abortWithError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Too many requests, please retry later")
			return
		}
		c.Next()
	}
}
