package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/model"
)

const redisKeyPrefix = "onboard:cache:"

// RedisCache stores entries as JSON strings with a native TTL matching
// ExpiresAt.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "store: ping redis %s", addr)
	}
	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, now: time.Now}
}

func redisKey(cnpj string) string {
	return redisKeyPrefix + model.NormalizeCNPJ(cnpj)
}

func (c *RedisCache) Get(ctx context.Context, cnpj string) (*model.CacheEntry, error) {
	raw, err := c.client.Get(ctx, redisKey(cnpj)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: redis get %s", cnpj)
	}
	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, eris.Wrapf(err, "store: decode redis entry %s", cnpj)
	}
	if e.Expired(c.now()) {
		return nil, c.Delete(ctx, cnpj)
	}
	return &e, nil
}

func (c *RedisCache) Put(ctx context.Context, entry model.CacheEntry) error {
	entry.CNPJ = model.NormalizeCNPJ(entry.CNPJ)
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return c.Delete(ctx, entry.CNPJ)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "store: encode redis entry")
	}
	if err := c.client.Set(ctx, redisKey(entry.CNPJ), data, ttl).Err(); err != nil {
		return eris.Wrapf(err, "store: redis set %s", entry.CNPJ)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, cnpj string) error {
	if err := c.client.Del(ctx, redisKey(cnpj)).Err(); err != nil {
		return eris.Wrapf(err, "store: redis del %s", cnpj)
	}
	return nil
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "store: redis scan")
	}
	return keys, nil
}

func (c *RedisCache) List(ctx context.Context) ([]model.CacheEntry, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CacheEntry, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "store: redis mget")
	}
	now := c.now()
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e model.CacheEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Clear removes only this application's keys.
func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "store: redis clear")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
