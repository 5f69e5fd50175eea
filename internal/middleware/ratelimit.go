// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

const keyPrefix = "ratelimit:"

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	OnLimited  func(http.ResponseWriter, *http.Request, *redis_rate.Result)
}

// bucketStore decides one request against limit for key.
type bucketStore interface {
	allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

type redisStore struct {
	limiter *redis_rate.Limiter
}

func (s redisStore) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	return s.limiter.Allow(ctx, key, limit)
}

type RateLimiter struct {
	primary  bucketStore
	fallback *localStore
	config   RateLimitConfig
}

// NewRateLimiter counts in Redis when rdb is set. Without Redis, or while it
// is unreachable, each process keeps its own token buckets.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	rl := &RateLimiter{
		fallback: newLocalStore(),
		config:   cfg,
	}
	if rdb != nil {
		rl.primary = redisStore{limiter: redis_rate.NewLimiter(rdb)}
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if !rl.config.FailOpen {
				core.JSONError(w, core.ServiceUnavailableError("rate limiter unavailable"))
				return
			}
			slog.Warn("rate limiter failing open", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		writeLimitHeaders(w.Header(), res)

		if res.Allowed > 0 {
			next.ServeHTTP(w, r)
			return
		}

		if rl.config.OnLimited != nil {
			rl.config.OnLimited(w, r, res)
			return
		}
		writeRateLimitExceeded(w, res)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if rl.primary != nil {
		res, err := rl.primary.allow(ctx, key, rl.config.Limit)
		if err == nil {
			return res, nil
		}
		slog.Debug("redis rate limit failed, using local buckets", "error", err)
	}
	return rl.fallback.allow(ctx, key, rl.config.Limit)
}

// KeyByIP keys on the last X-Forwarded-For hop, then X-Real-IP, then the peer
// address.
func KeyByIP(r *http.Request) string {
	return keyPrefix + "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return keyPrefix + "user:" + userID
	}
	return KeyByIP(r)
}

// KeyByUserAndEndpoint gives every route its own bucket per caller. Path
// segments that look like ids collapse to {id}.
func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":endpoint:" + normalizeEndpoint(r.URL.Path)
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isID(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isID(segment string) bool {
	if segment == "" {
		return false
	}
	if primitive.IsValidObjectID(segment) {
		return true
	}
	if len(segment) == 36 && uuid.Validate(segment) == nil {
		return true
	}
	_, err := strconv.ParseUint(segment, 10, 64)
	return err == nil
}

func writeLimitHeaders(h http.Header, res *redis_rate.Result) {
	resetSecs := int(res.ResetAfter.Round(time.Second).Seconds())

	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", res.Limit.Rate, int(res.Limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, resetSecs))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Round(time.Second).Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.NewAppError(
		nil,
		fmt.Sprintf("too many requests, retry in %d seconds", retryAfter),
		http.StatusTooManyRequests,
		"RATE_LIMITED",
	))
}

const (
	bucketTTL     = 10 * time.Minute
	sweepEvery    = 1024
	defaultWindow = time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localStore is the in-process fallback. Idle buckets are swept inline every
// sweepEvery decisions, so no background goroutine is needed.
type localStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

func newLocalStore() *localStore {
	return &localStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *localStore) allow(
	_ context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate limit %s", limit)
	}

	now := s.now()
	every := limit.Period / time.Duration(limit.Rate)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now)
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), max(limit.Burst, 1))}
		s.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}

	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		res.RetryAfter = delay
	} else {
		res.Allowed = 1
	}

	tokens := b.limiter.TokensAt(now)
	res.Remaining = max(int(tokens), 0)
	res.ResetAfter = time.Duration((float64(b.limiter.Burst()) - tokens) * float64(every))
	return res, nil
}

func (s *localStore) sweep(now time.Time) {
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > bucketTTL {
			delete(s.buckets, key)
		}
	}
}

// PerWindow allows rate requests every window. A non-positive window means a
// minute.
func PerWindow(window time.Duration, rate, burst int) redis_rate.Limit {
	if window <= 0 {
		window = defaultWindow
	}
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: window}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return PerWindow(time.Minute, rate, burst)
}
