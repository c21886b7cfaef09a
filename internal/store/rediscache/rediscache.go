// Package rediscache provides an L2 cache tier in front of
// repo.ScoringConfigRepo, backed by Redis. It decorates (rather than
// replaces) a concrete store backend, so internal/config's in-process
// ScoringConfigLoader (L1, §4.5) can sit in front of it for a three-tier
// read path: in-process map -> Redis -> postgres/spanner.
//
// Grounded on the teacher's internal/fabric/redis_store.go: the driver-
// agnostic RedisClient interface (ScoringConfigRepo depends only on it;
// GoRedisClient below adapts go-redis v9 to it) and the
// key-prefix-plus-TTL store shape, adapted from spoke registrations to
// ScoringConfig cache entries.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ava/internal/core"
	"ava/internal/repo"
)

// RedisClient is a minimal interface any Redis driver can satisfy;
// ScoringConfigRepo depends only on it, so the concrete client stays an
// injection-time decision, as the teacher's fabric.RedisClient
// decouples the hub from a specific driver.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

// ScoringConfigRepo decorates a repo.ScoringConfigRepo with a Redis-backed
// read cache for the two hot-path lookups (Get, GetActiveConfig); every
// write invalidates the affected keys rather than updating them in place,
// favoring correctness over avoiding a cache-miss round trip.
type ScoringConfigRepo struct {
	backend   repo.ScoringConfigRepo
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

// New wraps backend with a Redis cache tier. keyPrefix defaults to
// "ava:scoring_config:" and ttl to 60s if zero, matching the L1 loader's
// default TTL in internal/config/cache.go.
func New(backend repo.ScoringConfigRepo, client RedisClient, keyPrefix string, ttl time.Duration) *ScoringConfigRepo {
	if keyPrefix == "" {
		keyPrefix = "ava:scoring_config:"
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ScoringConfigRepo{backend: backend, client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *ScoringConfigRepo) idKey(id string) string {
	return r.keyPrefix + "id:" + id
}

func (r *ScoringConfigRepo) activeKey(siteURL string) string {
	site := siteURL
	if site == "" {
		site = "global"
	}
	return r.keyPrefix + "active:" + site
}

func (r *ScoringConfigRepo) readThrough(ctx context.Context, key string, miss func() (core.ScoringConfig, bool, error)) (core.ScoringConfig, bool, error) {
	if data, err := r.client.Get(ctx, key); err == nil && data != nil {
		var cfg core.ScoringConfig
		if err := json.Unmarshal(data, &cfg); err == nil {
			return cfg, true, nil
		}
	}

	cfg, ok, err := miss()
	if err != nil || !ok {
		return cfg, ok, err
	}

	if data, err := json.Marshal(cfg); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl); err != nil {
			slog.Warn("rediscache: set failed, continuing without cache write", "key", key, "error", err)
		}
	}
	return cfg, true, nil
}

// Get resolves a scoring config by id, reading through the cache.
func (r *ScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	return r.readThrough(ctx, r.idKey(id), func() (core.ScoringConfig, bool, error) {
		return r.backend.Get(ctx, id)
	})
}

// GetActiveConfig resolves siteURL's active config, reading through the
// cache.
func (r *ScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	return r.readThrough(ctx, r.activeKey(siteURL), func() (core.ScoringConfig, bool, error) {
		return r.backend.GetActiveConfig(ctx, siteURL)
	})
}

// List always passes through — it's an admin/dashboard listing path, not
// hot enough to justify caching a slice that changes shape on every write.
func (r *ScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	return r.backend.List(ctx, siteURL)
}

// Create writes through to the backend; nothing to invalidate since a new
// id has no prior cache entry.
func (r *ScoringConfigRepo) Create(ctx context.Context, cfg core.ScoringConfig) error {
	return r.backend.Create(ctx, cfg)
}

// Update writes through and invalidates the id-keyed cache entry.
func (r *ScoringConfigRepo) Update(ctx context.Context, cfg core.ScoringConfig) error {
	if err := r.backend.Update(ctx, cfg); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.idKey(cfg.ID)); err != nil {
		slog.Warn("rediscache: invalidate failed after update", "id", cfg.ID, "error", err)
	}
	return nil
}

// Activate writes through and invalidates both the target's id-keyed entry
// and its site's active-config entry, since Activate changes which config
// answers GetActiveConfig for that site.
func (r *ScoringConfigRepo) Activate(ctx context.Context, id string) error {
	cfg, ok, err := r.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.backend.Activate(ctx, id); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.idKey(id)); err != nil {
		slog.Warn("rediscache: invalidate failed after activate", "id", id, "error", err)
	}
	if ok {
		if err := r.client.Del(ctx, r.activeKey(cfg.SiteURL)); err != nil {
			slog.Warn("rediscache: invalidate failed after activate", "site_url", cfg.SiteURL, "error", err)
		}
	}
	return nil
}

// Delete writes through and invalidates the id-keyed cache entry.
func (r *ScoringConfigRepo) Delete(ctx context.Context, id string) error {
	if err := r.backend.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.idKey(id)); err != nil {
		slog.Warn("rediscache: invalidate failed after delete", "id", id, "error", err)
	}
	return nil
}

var _ repo.ScoringConfigRepo = (*ScoringConfigRepo)(nil)

// GoRedisClient adapts a *redis.Client (github.com/redis/go-redis/v9) to
// the RedisClient interface above, giving cmd wiring a real, production
// driver while ScoringConfigRepo itself depends only on RedisClient.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps a go-redis v9 client.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Set stores value at key with the given TTL.
func (g *GoRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves key's value, returning (nil, nil) on a cache miss rather
// than surfacing go-redis's redis.Nil sentinel to callers of RedisClient.
func (g *GoRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := g.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("rediscache: get: %w", err)
	}
	return val, nil
}

// Del removes one or more keys.
func (g *GoRedisClient) Del(ctx context.Context, keys ...string) error {
	return g.client.Del(ctx, keys...).Err()
}
