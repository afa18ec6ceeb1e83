// Package redisstore provides Redis-backed repository helpers shared by
// every service instance
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimPrefix = "evmarket:payment-claim:"

// Connect initializes a Redis client from URL or host:port input
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PaymentGuard implements repository.PaymentRefGuard with SET NX. Claims
// expire after ttl so a crashed holder cannot block a reference forever.
type PaymentGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPaymentGuard creates a guard with the given claim lifetime
func NewPaymentGuard(client *redis.Client, ttl time.Duration) *PaymentGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PaymentGuard{client: client, ttl: ttl}
}

func (g *PaymentGuard) Claim(ctx context.Context, paymentRef string) (bool, error) {
	ok, err := g.client.SetNX(ctx, claimPrefix+paymentRef, time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim payment %s: %w", paymentRef, err)
	}
	return ok, nil
}

func (g *PaymentGuard) Release(ctx context.Context, paymentRef string) error {
	if err := g.client.Del(ctx, claimPrefix+paymentRef).Err(); err != nil {
		return fmt.Errorf("release payment %s: %w", paymentRef, err)
	}
	return nil
}
