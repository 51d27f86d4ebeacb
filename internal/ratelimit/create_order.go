package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dreamline/internal/config"
	"go.uber.org/zap"
)

const keyCreateOrderSubject = "dreamline:orders:create:%s"

// CreateOrderLimiter throttles order submissions per subject. It only absorbs
// retry storms; admission quotas are enforced in the database.
type CreateOrderLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewCreateOrderLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *CreateOrderLimiter {
	limitCfg := cfg.RateLimit
	if client == nil || limitCfg.CreatePerSecond <= 0 || limitCfg.CreateBurst <= 0 {
		return nil
	}
	return &CreateOrderLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.CreatePerSecond,
		burst:  limitCfg.CreateBurst,
		log:    log.Named("ratelimit.create_order"),
	}
}

func (l *CreateOrderLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open: a redis error lets the request through.
func (l *CreateOrderLimiter) Allow(ctx context.Context, subjectID string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyCreateOrderSubject, strings.TrimSpace(subjectID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("create order rate limit check failed", zap.Error(err))
		return &Result{Allowed: true}
	}
	return res
}
