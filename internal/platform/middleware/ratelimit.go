package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int

	// Limiter holds the per-caller state. Nil means in-process token buckets.
	Limiter Limiter
	Logger  zerolog.Logger
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		Logger:            zerolog.Nop(),
	}
}

// Decision is a limiter's answer for one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimit limits each caller through cfg.Limiter. Authenticated callers are
// keyed by user so clinic staff behind one NAT do not share a budget. A
// limiter error lets the request through and is logged.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewMemoryLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := limiterKey(c)
			d, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				cfg.Logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retrySeconds(d.RetryAfter)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func limiterKey(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

// retrySeconds rounds up, never below one second.
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// MemoryLimiter keeps one token bucket per key in process memory. Buckets
// refill continuously at rate tokens per second up to burst.
type MemoryLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.burst, b.tokens+elapsed*l.rate)
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}, nil
	}
	d := Decision{RetryAfter: time.Second}
	if l.rate > 0 {
		d.RetryAfter = time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	}
	return d, nil
}

// WindowCounter increments a counter that expires window after its first
// increment and reports the new count and the time left in the window.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// WindowLimiter allows burst requests per window of burst/rate seconds, so
// the sustained rate matches the token bucket. The counter is shared, which
// makes the budget hold across server replicas.
type WindowLimiter struct {
	counter WindowCounter
	burst   int64
	window  time.Duration
}

func NewWindowLimiter(counter WindowCounter, rate float64, burst int) *WindowLimiter {
	window := time.Second
	if rate > 0 && burst > 0 {
		window = time.Duration(float64(burst) / rate * float64(time.Second))
	}
	return &WindowLimiter{counter: counter, burst: int64(burst), window: window}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	n, ttl, err := l.counter.IncrWindow(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		return Decision{}, err
	}
	if n <= l.burst {
		return Decision{Allowed: true, Remaining: int(l.burst - n)}, nil
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return Decision{RetryAfter: ttl}, nil
}
