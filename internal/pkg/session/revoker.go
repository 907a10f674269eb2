package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker invalidates an account's cached session state after its tier
// changed underneath an already-authenticated identity.
type Revoker interface {
	Revoke(ctx context.Context, accountID uint) error
}

// DefaultRevocationTTL covers the longest-lived token the login layer issues.
const DefaultRevocationTTL = 24 * time.Hour

// RedisRevoker drops the account's session key and leaves a revocation marker
// the login layer checks before trusting cached claims.
type RedisRevoker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRevoker creates a revoker over the shared redis client.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, ttl: DefaultRevocationTTL}
}

func (r *RedisRevoker) Revoke(ctx context.Context, accountID uint) error {
	sessionKey := fmt.Sprintf("session:account:%d", accountID)
	if err := r.client.Del(ctx, sessionKey).Err(); err != nil {
		return err
	}
	marker := fmt.Sprintf("session:revoked:%d", accountID)
	return r.client.Set(ctx, marker, time.Now().Unix(), r.ttl).Err()
}
