package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/logger"
)

// RedisLimiter shares sliding windows between processes through sorted sets
// scored by unix milliseconds. Redis errors fail open.
type RedisLimiter struct {
	client   redis.UniversalClient
	prefix   string
	policies map[string]Policy
	timeout  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, policies map[string]Policy, log *logger.Logger) *RedisLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLimiter{
		client:   client,
		prefix:   prefix,
		policies: policies,
		timeout:  100 * time.Millisecond,
		log:      log,
		now:      time.Now,
	}
}

func (l *RedisLimiter) key(actor models.ActorID, class string) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s", l.prefix, class, actor)
}

func (l *RedisLimiter) Allow(actor models.ActorID, class string) bool {
	p, ok := l.policies[class]
	if !ok {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	k := l.key(actor, class)
	now := l.now()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now.Add(-p.Window).UnixMilli(), 10))
	card := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("ratelimit.redis allow failed open", logger.Error(err), logger.String("class", class))
		return true
	}
	return card.Val() < int64(p.Max)
}

func (l *RedisLimiter) Record(actor models.ActorID, class string) {
	p, ok := l.policies[class]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	k := l.key(actor, class)
	now := l.now()

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.PExpire(ctx, k, p.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("ratelimit.redis record failed", logger.Error(err), logger.String("class", class))
	}
}

// TryAcquire adds the attempt optimistically and removes it again when the
// window was already full.
func (l *RedisLimiter) TryAcquire(actor models.ActorID, class string) bool {
	p, ok := l.policies[class]
	if !ok {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	k := l.key(actor, class)
	now := l.now()
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now.Add(-p.Window).UnixMilli(), 10))
	card := pipe.ZCard(ctx, k)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.PExpire(ctx, k, p.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("ratelimit.redis acquire failed open", logger.Error(err), logger.String("class", class))
		return true
	}
	if card.Val() >= int64(p.Max) {
		l.client.ZRem(ctx, k, member)
		return false
	}
	return true
}

// Cleanup is a no-op; keys expire in Redis on their own.
func (l *RedisLimiter) Cleanup(time.Duration) int { return 0 }
