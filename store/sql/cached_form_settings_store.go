package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-form-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const formSettingsCacheKeyPrefix = "form-integrations::form_settings::v1"

// CachedFormSettingsStore serves snapshot reads through a read-through cache
// and drops the cached entry on every save.
type CachedFormSettingsStore struct {
	base  core.SettingsStore
	cache repositorycache.CacheService
}

func NewCachedFormSettingsStore(
	base core.SettingsStore,
	cacheService repositorycache.CacheService,
) (*CachedFormSettingsStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base form settings store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: form settings cache service is required")
	}
	return &CachedFormSettingsStore{base: base, cache: cacheService}, nil
}

// FormSettingsCacheKey returns form-integrations::form_settings::v1::<integration>
// with the handle URL-path escaped.
func FormSettingsCacheKey(integration string) (string, error) {
	integration = strings.TrimSpace(integration)
	if integration == "" {
		return "", fmt.Errorf("sqlstore: integration handle is required")
	}
	return formSettingsCacheKeyPrefix + "::" + url.PathEscape(integration), nil
}

func (s *CachedFormSettingsStore) Get(ctx context.Context, integration string) (core.FormSettingsSnapshot, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.FormSettingsSnapshot{}, fmt.Errorf("sqlstore: cached form settings store is not configured")
	}
	integration = strings.TrimSpace(integration)
	cacheKey, err := FormSettingsCacheKey(integration)
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	snapshot, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.FormSettingsSnapshot, error) {
		fetched, fetchErr := s.base.Get(ctx, integration)
		if fetchErr != nil {
			return core.FormSettingsSnapshot{}, fetchErr
		}
		return cloneSnapshot(fetched), nil
	})
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	return cloneSnapshot(snapshot), nil
}

func (s *CachedFormSettingsStore) Save(ctx context.Context, snapshot core.FormSettingsSnapshot) (core.FormSettingsSnapshot, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.FormSettingsSnapshot{}, fmt.Errorf("sqlstore: cached form settings store is not configured")
	}
	saved, err := s.base.Save(ctx, snapshot)
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	cacheKey, err := FormSettingsCacheKey(saved.Integration)
	if err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.FormSettingsSnapshot{}, err
	}
	return saved, nil
}

// NewFormSettingsCacheService builds the cache backing
// CachedFormSettingsStore. A zero ttl keeps the library default.
func NewFormSettingsCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

func cloneSnapshot(snapshot core.FormSettingsSnapshot) core.FormSettingsSnapshot {
	cloned := snapshot
	cloned.Settings = snapshot.Settings.Clone()
	cloned.FetchedAt = snapshot.FetchedAt.UTC()
	return cloned
}
