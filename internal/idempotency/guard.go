// Package idempotency stops the same event from being delivered twice to a
// recipient when the broker redelivers a message.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard claims a delivery key before delivery begins. Claim returns false
// when another delivery already holds the key. A claim is short-lived until
// Confirm extends it; Release drops it so a redelivery can retry.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Confirm(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// Key identifies one recipient slot of one event. The position in the
// recipient list keeps two recipients with the same user or address apart.
func Key(eventID string, position int, email string) string {
	return fmt.Sprintf("notification:delivery:%s:%d:%s", eventID, position, email)
}

// RedisGuard stores claims as expiring keys. A fresh claim lives for
// pendingTTL; a confirmed one for ttl.
type RedisGuard struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewRedisGuard(client *redis.Client, ttl, pendingTTL time.Duration) *RedisGuard {
	if pendingTTL <= 0 || pendingTTL > ttl {
		pendingTTL = ttl
	}
	return &RedisGuard{client: client, ttl: ttl, pendingTTL: pendingTTL}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim delivery: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Confirm(ctx context.Context, key string) error {
	if err := g.client.Expire(ctx, key, g.ttl).Err(); err != nil {
		return fmt.Errorf("confirm delivery: %w", err)
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release delivery: %w", err)
	}
	return nil
}

// NopGuard accepts every claim. Used when no Redis address is configured.
type NopGuard struct{}

func (NopGuard) Claim(context.Context, string) (bool, error) { return true, nil }
func (NopGuard) Confirm(context.Context, string) error       { return nil }
func (NopGuard) Release(context.Context, string) error       { return nil }

var (
	_ Guard = (*RedisGuard)(nil)
	_ Guard = NopGuard{}
)
