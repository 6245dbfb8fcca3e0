package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmacare/pharmacy-backend/config"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// Connect opens a Redis client and verifies it with PING
func Connect(cfg *config.RedisConfig) (*redis.Client, error) {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"addr": cfg.Addr(),
		"db":   cfg.DB,
	})

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"addr": cfg.Addr(),
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")
	return client, nil
}

// TokenBlacklist stores revoked token IDs until they would have expired anyway
type TokenBlacklist struct {
	client redis.Cmdable
}

func NewTokenBlacklist(client redis.Cmdable) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

// Revoke blacklists tokenID for ttl. A non-positive ttl is a no-op since
// the token is already expired.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	logger.Debug("Adding token to blacklist", map[string]interface{}{
		"token_id": tokenID,
		"ttl":      ttl.String(),
	})

	if err := b.client.Set(ctx, blacklistPrefix+tokenID, "revoked", ttl).Err(); err != nil {
		logger.Error("Failed to blacklist token", err, map[string]interface{}{
			"token_id": tokenID,
		})
		return err
	}
	return nil
}

// IsRevoked reports whether tokenID has been blacklisted
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := b.client.Get(ctx, blacklistPrefix+tokenID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to check token blacklist", err, map[string]interface{}{
			"token_id": tokenID,
		})
		return false, err
	}
	return val == "revoked", nil
}
