package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

// cacheEntry holds one cached ScoringConfig and its expiry, mirroring the
// teacher's Manager.Get copy-on-read pattern.
type cacheEntry struct {
	cfg     core.ScoringConfig
	expires time.Time
}

// ScoringConfigLoader implements the §4.5 config loader: load(siteUrl?,
// configId?) -> ScoringConfig, cached per (siteUrl||"global"):(configId||
// "active") with a TTL, falling back through site-active -> global-active
// -> built-in defaults on any resolution failure.
type ScoringConfigLoader struct {
	repo repo.ScoringConfigRepo
	ttl  time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewScoringConfigLoader constructs a loader backed by repo with the given
// cache TTL (0 uses the 60s spec default).
func NewScoringConfigLoader(r repo.ScoringConfigRepo, ttl time.Duration) *ScoringConfigLoader {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ScoringConfigLoader{repo: r, ttl: ttl, cache: make(map[string]cacheEntry)}
}

func cacheKey(siteURL, configID string) string {
	site := siteURL
	if site == "" {
		site = "global"
	}
	id := configID
	if id == "" {
		id = "active"
	}
	return site + ":" + id
}

// Load resolves a ScoringConfig for (siteURL, configID), both optional.
// Cache hits skip all repository I/O. On a persistence error the built-in
// defaults are returned and the error logged (§4.5, §7 TransientExternal).
func (l *ScoringConfigLoader) Load(ctx context.Context, siteURL, configID string) core.ScoringConfig {
	key := cacheKey(siteURL, configID)

	l.mu.RLock()
	if entry, ok := l.cache[key]; ok && time.Now().Before(entry.expires) {
		l.mu.RUnlock()
		return entry.cfg
	}
	l.mu.RUnlock()

	cfg, err := l.resolve(ctx, siteURL, configID)
	if err != nil {
		slog.Error("config: resolution failed, using built-in defaults", "site_url", siteURL, "config_id", configID, "error", err)
		cfg = core.DefaultScoringConfig()
	}

	l.mu.Lock()
	l.cache[key] = cacheEntry{cfg: cfg, expires: time.Now().Add(l.ttl)}
	l.mu.Unlock()

	return cfg
}

func (l *ScoringConfigLoader) resolve(ctx context.Context, siteURL, configID string) (core.ScoringConfig, error) {
	if configID != "" {
		cfg, ok, err := l.repo.Get(ctx, configID)
		if err != nil {
			return core.ScoringConfig{}, err
		}
		if ok {
			return cfg, nil
		}
		return core.DefaultScoringConfig(), nil
	}

	cfg, ok, err := l.repo.GetActiveConfig(ctx, siteURL)
	if err != nil {
		return core.ScoringConfig{}, err
	}
	if ok {
		return cfg, nil
	}

	if siteURL != "" {
		cfg, ok, err = l.repo.GetActiveConfig(ctx, "")
		if err != nil {
			return core.ScoringConfig{}, err
		}
		if ok {
			return cfg, nil
		}
	}

	return core.DefaultScoringConfig(), nil
}

// Invalidate flushes the entire cache, used on admin edits to a
// ScoringConfig (§4.5).
func (l *ScoringConfigLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]cacheEntry)
}
