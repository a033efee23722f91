package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/praxislearn/curricula/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "synthesis:response:"

// ExactStore is the exact-match layer of the response cache: TTL'd, bounded,
// oldest-out.
type ExactStore interface {
	Get(ctx context.Context, key string) (*models.SynthesisResponse, bool, error)
	Set(ctx context.Context, key string, resp *models.SynthesisResponse) error
}

// memoryStore bounds entries with an expirable LRU.
type memoryStore struct {
	lru *expirable.LRU[string, models.SynthesisResponse]
}

func newMemoryStore(capacity int, ttl time.Duration) *memoryStore {
	return &memoryStore{
		lru: expirable.NewLRU[string, models.SynthesisResponse](capacity, nil, ttl),
	}
}

func (m *memoryStore) Get(_ context.Context, key string) (*models.SynthesisResponse, bool, error) {
	resp, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, resp *models.SynthesisResponse) error {
	m.lru.Add(key, *resp)
	return nil
}

// redisStore keeps entries as JSON values with a server-side TTL.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(client *redis.Client, ttl time.Duration) *redisStore {
	return &redisStore{client: client, ttl: ttl}
}

func (r *redisStore) Get(ctx context.Context, key string) (*models.SynthesisResponse, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var resp models.SynthesisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		fiberlog.Warnf("ExactStore: dropping undecodable cache entry %s: %v", key, err)
		r.client.Del(ctx, redisKeyPrefix+key)
		return nil, false, nil
	}
	return &resp, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, resp *models.SynthesisResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
