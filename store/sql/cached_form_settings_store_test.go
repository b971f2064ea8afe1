package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubSettingsStore struct {
	mu        sync.Mutex
	snapshot  core.FormSettingsSnapshot
	getCalls  int
	saveCalls int
	getErr    error
}

func (s *stubSettingsStore) Get(_ context.Context, integration string) (core.FormSettingsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.FormSettingsSnapshot{}, s.getErr
	}
	out := cloneSnapshot(s.snapshot)
	out.Integration = integration
	return out, nil
}

func (s *stubSettingsStore) Save(_ context.Context, snapshot core.FormSettingsSnapshot) (core.FormSettingsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.snapshot = cloneSnapshot(snapshot)
	return snapshot, nil
}

func TestCachedFormSettingsStore_Get_MissFetchThenHit(t *testing.T) {
	base := &stubSettingsStore{snapshot: core.FormSettingsSnapshot{
		ProviderID: "mailerlite",
		Settings:   core.FormSettings{Lists: []core.MarketingList{{ID: "42", Name: "Newsletter"}}},
		FetchedAt:  time.Now().UTC(),
	}}
	store, err := NewCachedFormSettingsStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	for i := 0; i < 2; i++ {
		snapshot, err := store.Get(context.Background(), "newsletter")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if len(snapshot.Settings.Lists) != 1 {
			t.Fatalf("unexpected snapshot %#v", snapshot)
		}
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be a cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedFormSettingsStore_Save_InvalidatesCachedKey(t *testing.T) {
	base := &stubSettingsStore{snapshot: core.FormSettingsSnapshot{
		Settings: core.FormSettings{Lists: []core.MarketingList{{ID: "42"}}},
	}}
	store, err := NewCachedFormSettingsStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, err := store.Get(context.Background(), "newsletter"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	if _, err := store.Save(context.Background(), core.FormSettingsSnapshot{
		Integration: "newsletter",
		Settings:    core.FormSettings{Lists: []core.MarketingList{{ID: "42"}, {ID: "43"}}},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snapshot, err := store.Get(context.Background(), "newsletter")
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected save to invalidate cache, base get calls=%d", base.getCalls)
	}
	if len(snapshot.Settings.Lists) != 2 {
		t.Fatalf("expected refreshed lists, got %#v", snapshot.Settings.Lists)
	}
}

func TestCachedFormSettingsStore_Get_PropagatesNotFound(t *testing.T) {
	notFound := goerrors.New("missing", goerrors.CategoryNotFound)
	base := &stubSettingsStore{getErr: notFound}
	store, err := NewCachedFormSettingsStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	_, err = store.Get(context.Background(), "crm")
	if !errors.Is(err, notFound) && !core.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestFormSettingsCacheKey(t *testing.T) {
	key, err := FormSettingsCacheKey(" crm/eu ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "form-integrations::form_settings::v1::crm%2Feu" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := FormSettingsCacheKey(" "); err == nil {
		t.Fatalf("expected empty handle to fail")
	}
}

func TestNewCachedFormSettingsStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedFormSettingsStore(nil, newTestCacheService(t)); err == nil {
		t.Fatalf("expected missing base store to fail")
	}
	if _, err := NewCachedFormSettingsStore(&stubSettingsStore{}, nil); err == nil {
		t.Fatalf("expected missing cache service to fail")
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	service, err := NewFormSettingsCacheService(time.Minute)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
