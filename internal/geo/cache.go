package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trinetra/pkg/types"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores forward geocoding results keyed by address.
type Cache interface {
	Get(ctx context.Context, address string) (types.Coordinate, bool, error)
	Set(ctx context.Context, address string, c types.Coordinate) error
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

type MemoryCache struct {
	store *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: cache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, address string) (types.Coordinate, bool, error) {
	v, ok := m.store.Get(cacheKey(address))
	if !ok {
		return types.Coordinate{}, false, nil
	}
	return v.(types.Coordinate), true, nil
}

func (m *MemoryCache) Set(_ context.Context, address string, c types.Coordinate) error {
	m.store.SetDefault(cacheKey(address), c)
	return nil
}

const redisKeyPrefix = "trinetra:geocode:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, address string) (types.Coordinate, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+cacheKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Coordinate{}, false, nil
	}
	if err != nil {
		return types.Coordinate{}, false, fmt.Errorf("redis get: %w", err)
	}

	var c types.Coordinate
	if err := json.Unmarshal(data, &c); err != nil {
		return types.Coordinate{}, false, fmt.Errorf("decode cached coordinate: %w", err)
	}

	return c, true, nil
}

func (r *RedisCache) Set(ctx context.Context, address string, c types.Coordinate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode coordinate: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+cacheKey(address), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
