package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loqalabs/juggie/internal/config"
)

// Cache stores synthesized segments in Redis keyed by voice, format and text.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache connects to Redis and verifies the connection.
func NewCache(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewCacheWithClient(client, time.Duration(cfg.TTLSeconds)*time.Second, cfg.Prefix), nil
}

func NewCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) *Cache {
	if prefix == "" {
		prefix = "juggie"
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// Key derives the cache key for one synthesis request.
func (c *Cache) Key(voice, format, text string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + format + "\x00" + text))
	return fmt.Sprintf("%s:segment:%s", c.prefix, hex.EncodeToString(sum[:]))
}

// Get returns the cached segment. A miss is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
