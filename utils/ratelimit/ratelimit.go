package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/Nexus/middleware/log"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow checks if a request should be allowed under rule.
	// Returns true if allowed, false if the limit is exceeded.
	Allow(ctx context.Context, key string, rule Rule) (bool, error)

	// Remaining returns the number of requests left in the current window
	Remaining(ctx context.Context, key string, rule Rule) (int, error)
}

// Rule 一个时间窗口内允许的请求数
type Rule struct {
	Limit  int
	Window time.Duration
}

// RetryAfter 当前窗口剩余的秒数，至少为 1
func (r Rule) RetryAfter(now time.Time) int {
	w := r.window()
	left := w - time.Duration(now.UnixNano()%int64(w))
	return max(int(left.Seconds()), 1)
}

func (r Rule) window() time.Duration {
	return max(r.Window, time.Second)
}

var ErrInvalidRule = errors.New("ratelimit: limit must be positive")

// WindowLimiter counts requests per fixed window in Redis.
// INCRBY and EXPIRE run in one pipeline, so the count is shared by every instance.
type WindowLimiter struct {
	redisClient *redis.Client
	log         *logger.Logger
	prefix      string
	fallback    bool // Redis 不可用时放行 (fail-open)
	now         func() time.Time
}

// NewWindowLimiter creates a limiter storing its counters under prefix.
// If fallback is true, requests are allowed when Redis fails.
func NewWindowLimiter(redisClient *redis.Client, log *logger.Logger, prefix string, fallback bool) *WindowLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	if prefix == "" {
		prefix = "nexus"
	}
	return &WindowLimiter{
		redisClient: redisClient,
		log:         log.Named("ratelimit"),
		prefix:      prefix,
		fallback:    fallback,
		now:         time.Now,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	return l.AllowN(ctx, key, 1, rule)
}

func (l *WindowLimiter) AllowN(ctx context.Context, key string, n int, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return false, ErrInvalidRule
	}
	bucketKey := l.bucketKey(key, l.now(), rule.window())

	pipe := l.redisClient.Pipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, int64(n))
	pipe.Expire(ctx, bucketKey, rule.window()+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		if l.fallback {
			l.log.WarnContext(ctx, "rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
				zap.Error(err),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(rule.Limit)
	if !allowed {
		l.log.WarnContext(ctx, "rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
			zap.Duration("window", rule.Window),
		)
	}
	return allowed, nil
}

func (l *WindowLimiter) Remaining(ctx context.Context, key string, rule Rule) (int, error) {
	bucketKey := l.bucketKey(key, l.now(), rule.window())

	count, err := l.redisClient.Get(ctx, bucketKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rule.Limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining requests: %w", err)
	}
	return max(rule.Limit-int(count), 0), nil
}

// bucketKey 形如 nexus:ratelimit:ip:1.2.3.4:<窗口序号>
func (l *WindowLimiter) bucketKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:ratelimit:%s:%d", l.prefix, key, now.UnixNano()/int64(window))
}
