package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"go.uber.org/zap"
)

const keyAuthEndpoint = "taskboard:ratelimit:auth:%s:%s"

// AuthLimiter throttles login, register and verification attempts per client
// address. A nil limiter allows everything.
type AuthLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAuthLimiter(client *redis.Client, cfg config.Config, clk clock.Clock, log *zap.Logger) (*AuthLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		log.Info("auth rate limiting disabled")
		return nil, nil
	}
	if limitCfg.AuthRate <= 0 || limitCfg.AuthBurst <= 0 {
		return nil, errors.New("auth rate limit must be positive")
	}
	return &AuthLimiter{
		bucket: NewTokenBucket(client, clk),
		rate:   limitCfg.AuthRate,
		burst:  limitCfg.AuthBurst,
	}, nil
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one attempt for endpoint from clientIP.
func (l *AuthLimiter) Allow(ctx context.Context, endpoint, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	endpoint = strings.TrimSpace(endpoint)
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAuthEndpoint, endpoint, clientIP), l.rate, l.burst)
}
