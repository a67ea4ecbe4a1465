package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisTokenBlacklist keys revoked tokens by their SHA-256 digest so raw
// tokens never touch Redis. Redis handles expiry via the key TTL.
type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(addr string, password string, db int) *RedisTokenBlacklist {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTokenBlacklist{client: client}
}

func (b *RedisTokenBlacklist) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisTokenBlacklist) Close() error {
	return b.client.Close()
}

func (b *RedisTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, err := b.client.Get(ctx, blacklistKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blacklistKey(token string) string {
	return "auth:revoked:" + hashToken(token)
}
