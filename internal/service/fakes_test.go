package service

import (
	"context"
	"sync"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/fennelouski/cardoncue/internal/provider"
	"github.com/fennelouski/cardoncue/internal/repository"
)

// fakeProvider is a scriptable provider.Provider for chain tests.
type fakeProvider struct {
	name        string
	counts      bool
	baseCost    float64
	meteredCost float64
	locations   []domain.CandidateLocation
	err         error

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string                  { return f.name }
func (f *fakeProvider) BaseCost() float64             { return f.baseCost }
func (f *fakeProvider) CountsTowardSufficiency() bool { return f.counts }

func (f *fakeProvider) Find(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*provider.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Locations: f.locations, MeteredCost: f.meteredCost}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// makeLocations fabricates n distinct candidates around a base point.
func makeLocations(n int, baseLat, baseLon float64) []domain.CandidateLocation {
	out := make([]domain.CandidateLocation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.CandidateLocation{
			Name: "Store",
			Lat:  baseLat + float64(i)*0.01,
			Lon:  baseLon,
		})
	}
	return out
}

// fakeCache is an in-memory CacheStore with call accounting and optional
// injected failures.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	gets    int
	sets    int
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.CacheEntry)}
}

func (c *fakeCache) Get(ctx context.Context, entryType, key string) (*domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	entry, ok := c.entries[entryType+"|"+key]
	if !ok || entry.Expired(time.Now()) {
		return nil, repository.ErrCacheMiss
	}
	entry.HitCount++
	return entry, nil
}

func (c *fakeCache) Set(ctx context.Context, entryType, key, payload, metadata string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	entry := &domain.CacheEntry{
		Type:      entryType,
		Key:       key,
		Payload:   payload,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		entry.ExpiresAt = &expires
	}
	c.entries[entryType+"|"+key] = entry
	return nil
}

func (c *fakeCache) counters() (gets, sets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.sets
}
