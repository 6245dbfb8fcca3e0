package redis

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacare/pharmacy-backend/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a closed port so every command fails fast
func unreachableClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTokenBlacklist_RevokeExpiredTokenIsNoop(t *testing.T) {
	blacklist := NewTokenBlacklist(unreachableClient(t))

	assert.NoError(t, blacklist.Revoke(context.Background(), "jti", 0))
	assert.NoError(t, blacklist.Revoke(context.Background(), "jti", -time.Minute))
}

func TestTokenBlacklist_PropagatesStoreErrors(t *testing.T) {
	blacklist := NewTokenBlacklist(unreachableClient(t))

	assert.Error(t, blacklist.Revoke(context.Background(), "jti", time.Minute))

	revoked, err := blacklist.IsRevoked(context.Background(), "jti")
	require.Error(t, err)
	assert.False(t, revoked)
}

func TestConnect_FailsWithoutServer(t *testing.T) {
	client, err := Connect(&config.RedisConfig{Host: "127.0.0.1", Port: "1"})
	assert.Error(t, err)
	assert.Nil(t, client)
}
