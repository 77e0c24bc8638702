// Package store keeps build status records between requests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/opd-ai/storybook/srv/generator"
)

// DefaultTTL is how long a finished build stays retrievable.
const DefaultTTL = 24 * time.Hour

type Store interface {
	Save(ctx context.Context, status generator.Status) error
	// Load reports found=false for an unknown or expired id.
	Load(ctx context.Context, id string) (generator.Status, bool, error)
	Close() error
}

// Memory keeps records in process.
type Memory struct {
	cache *cache.Cache
}

var _ Store = (*Memory)(nil)

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{cache: cache.New(ttl, time.Hour)}
}

func (m *Memory) Save(_ context.Context, status generator.Status) error {
	m.cache.Set(status.ID, status, cache.DefaultExpiration)
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (generator.Status, bool, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return generator.Status{}, false, nil
	}
	return v.(generator.Status), true, nil
}

func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}

// Redis keeps records as JSON strings under "storybook:build:<id>", so that
// several server instances behind one balancer share build status.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func key(id string) string {
	return "storybook:build:" + id
}

func (r *Redis) Save(ctx context.Context, status generator.Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding build %s: %w", status.ID, err)
	}
	return r.client.Set(ctx, key(status.ID), data, r.ttl).Err()
}

func (r *Redis) Load(ctx context.Context, id string) (generator.Status, bool, error) {
	var status generator.Status
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return status, false, nil
	}
	if err != nil {
		return status, false, err
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, false, fmt.Errorf("decoding build %s: %w", id, err)
	}
	return status, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
