package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minRevokeTTL keeps an entry around briefly even when the token is about to
// expire, so a revoke racing the expiry still sticks.
const minRevokeTTL = time.Second

// TokenDenylist records revoked refresh tokens by their jti.
// Key format: denylist:<jti>
type TokenDenylist struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenDenylist creates a TokenDenylist wrapping the given Redis client.
func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client, now: time.Now}
}

// Revoke denies tokenID until the token's own expiry; after that the
// signature check rejects it anyway and the key can lapse.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := d.client.Set(ctx, key(tokenID), "1", d.ttl(until)).Err(); err != nil {
		return fmt.Errorf("denylist revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("denylist check: %w", err)
	}
	return n > 0, nil
}

func (d *TokenDenylist) ttl(until time.Time) time.Duration {
	ttl := until.Sub(d.now())
	if ttl < minRevokeTTL {
		return minRevokeTTL
	}
	return ttl
}

func key(tokenID string) string {
	return "denylist:" + tokenID
}
