package middleware

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/portal/pkg/httpcontext"
)

const limiterIdleTTL = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	perSecond      rate.Limit
	burst          int
	trustForwarded bool
	logger         *zap.Logger

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter keys buckets by socket address unless trustForwarded is set.
func NewRateLimiter(perSecond float64, burst int, trustForwarded bool, logger *zap.Logger) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		perSecond:      rate.Limit(perSecond),
		burst:          burst,
		trustForwarded: trustForwarded,
		logger:         logger,
		buckets:        make(map[string]*bucket),
		lastSweep:      time.Now(),
	}
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > time.Minute {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Limit rejects requests over the budget with 429.
func (rl *RateLimiter) Limit(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ip := httpcontext.ClientIP(ctx, rl.trustForwarded)
		if !rl.Allow(ip) {
			rl.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.ByteString("path", ctx.Path()))
			ctx.Response.Header.Set("Retry-After", "1")
			ctx.Error("too many attempts", fasthttp.StatusTooManyRequests)
			return
		}
		next(ctx)
	}
}
