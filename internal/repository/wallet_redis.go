package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pkg/logger"
	"github.com/GoPolymarket/safegate/internal/store"
)

// RedisWalletCache decorates a UserStore with a TTL cache so repeated
// submissions for the same user skip the database and chain reads.
// Cache failures are logged and fall through to the inner store.
type RedisWalletCache struct {
	client *redis.Client
	inner  store.UserStore
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func NewRedisWalletCache(client *redis.Client, inner store.UserStore, ttl time.Duration) *RedisWalletCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisWalletCache{client: client, inner: inner, ttl: ttl}
}

func (c *RedisWalletCache) GetWallet(ctx context.Context, userAddress string) (*model.WalletRecord, error) {
	key := c.key(userAddress)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var record model.WalletRecord
		if err := json.Unmarshal(raw, &record); err == nil {
			return &record, nil
		}
	} else if err != redis.Nil {
		logger.Warn("wallet cache read failed", "user", userAddress, "error", err)
	}

	record, err := c.inner.GetWallet(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, record)
	return record, nil
}

func (c *RedisWalletCache) SaveWallet(ctx context.Context, record *model.WalletRecord) error {
	if err := c.inner.SaveWallet(ctx, record); err != nil {
		return err
	}
	c.set(ctx, c.key(record.UserAddress), record)
	return nil
}

func (c *RedisWalletCache) set(ctx context.Context, key string, record *model.WalletRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn("wallet cache write failed", "key", key, "error", err)
	}
}

func (c *RedisWalletCache) key(userAddress string) string {
	return "wallet:" + strings.ToLower(userAddress)
}
