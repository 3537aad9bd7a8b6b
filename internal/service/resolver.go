package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/provider"
	"github.com/fennelouski/cardoncue/internal/repository"
	"golang.org/x/sync/singleflight"
)

// Resolution sources beyond the provider names.
const (
	SourceCache = "cache"
	SourceNone  = "none"
)

// CacheStore is the slice of the cache repository the resolver needs.
type CacheStore interface {
	Get(ctx context.Context, entryType, key string) (*domain.CacheEntry, error)
	Set(ctx context.Context, entryType, key, payload, metadata string, ttl time.Duration) error
}

// ResolveResult is the transient outcome of one resolution. It is returned
// synchronously and never persisted as-is; the processor persists the
// locations and job fields separately.
type ResolveResult struct {
	Locations    []domain.CandidateLocation `json:"locations"`
	Source       string                     `json:"source"`
	CostEstimate float64                    `json:"cost_estimate"`
	// LastError carries the text of the last tier's failure when the chain
	// ended with zero locations. Informational only.
	LastError string `json:"-"`
}

// ResolverConfig holds tuning for the resolution chain.
type ResolverConfig struct {
	// SufficiencyThreshold is the minimum result count from a
	// sufficiency-counting tier before costlier tiers are skipped.
	SufficiencyThreshold int
	CacheTTL             time.Duration
	Keys                 KeyOptions
}

// Resolver returns the best-available location set for a (merchant, anchor,
// radius) request at minimum cost, walking providers in increasing-cost order
// against the sufficiency threshold. Tiers are winner-take-all: a costlier
// tier's output replaces, never merges with, a cheaper tier's.
type Resolver struct {
	cache     CacheStore
	providers []provider.Provider
	cfg       ResolverConfig
	group     singleflight.Group
	logger    *logger.Logger
}

// NewResolver creates a Resolver over an ordered provider chain.
// Parameters:
//   - cache: cache store; may error freely, failures degrade to cold lookups.
//   - providers: adapters in increasing-cost order.
//   - cfg: thresholds and cache TTL; zero values get defaults.
//   - log: logger instance.
// Returns:
//   - *Resolver: initialized resolver.
func NewResolver(cache CacheStore, providers []provider.Provider, cfg ResolverConfig, log *logger.Logger) *Resolver {
	if cfg.SufficiencyThreshold <= 0 {
		cfg.SufficiencyThreshold = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * 24 * time.Hour
	}
	cfg.Keys = cfg.Keys.normalized()
	if log == nil {
		log = logger.GetDefault()
	}
	return &Resolver{
		cache:     cache,
		providers: providers,
		cfg:       cfg,
		logger:    log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (r *Resolver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

// cacheMetadata is stored alongside the cached payload.
type cacheMetadata struct {
	Source    string  `json:"source"`
	Count     int     `json:"count"`
	Cost      float64 `json:"cost"`
	RadiusKm  float64 `json:"radius_km"`
	AnchorLat float64 `json:"anchor_lat"`
	AnchorLon float64 `json:"anchor_lon"`
}

// Resolve validates the request, consults the cache, and walks the provider
// chain. Concurrent resolutions of the same cache key share one walk.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - merchant: merchant name.
//   - anchor: search center point.
//   - radiusKm: search radius in kilometers.
// Returns:
//   - *ResolveResult: locations, winning source, and summed cost of the
//     adapters actually invoked.
//   - error: validation failure; provider failures never surface here.
func (r *Resolver) Resolve(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*ResolveResult, error) {
	if err := domain.ValidateSearch(merchant, anchor, radiusKm); err != nil {
		return nil, err
	}

	key := ResolutionKey(merchant, anchor, radiusKm, r.cfg.Keys)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolveKeyed(ctx, key, merchant, anchor, radiusKm), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResolveResult), nil
}

func (r *Resolver) resolveKeyed(ctx context.Context, key, merchant string, anchor domain.GeoPoint, radiusKm float64) *ResolveResult {
	if cached := r.fromCache(ctx, key); cached != nil {
		return cached
	}

	result := r.walkChain(ctx, merchant, anchor, radiusKm)

	// A chain that ended in failure is a transient outcome, not an answer;
	// caching it would pin the outage for the full TTL. Empty successful
	// answers are still cached.
	if result.LastError == "" {
		// Fire-and-forget: a failed cache write only costs a future recompute.
		r.store(ctx, key, anchor, radiusKm, result)
	}

	return result
}

// fromCache returns a hit as a ResolveResult, or nil on any miss or error.
func (r *Resolver) fromCache(ctx context.Context, key string) *ResolveResult {
	entry, err := r.cache.Get(ctx, domain.CacheTypeResolution, key)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			r.log(ctx).WithError(err).Warn("Cache read failed, treating as miss")
		}
		return nil
	}

	var locations []domain.CandidateLocation
	if err := json.Unmarshal([]byte(entry.Payload), &locations); err != nil {
		r.log(ctx).WithError(err).Warn("Cache payload corrupt, treating as miss")
		return nil
	}

	return &ResolveResult{
		Locations:    locations,
		Source:       SourceCache,
		CostEstimate: 0,
	}
}

// walkChain invokes providers in order until one tier is accepted. The final
// tier's successful answer is accepted even when empty; SourceNone only means
// the chain ended in failure.
func (r *Resolver) walkChain(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) *ResolveResult {
	result := &ResolveResult{Source: SourceNone}

	for i, p := range r.providers {
		pctx := logger.SetProvider(ctx, p.Name())
		start := time.Now()

		found, err := p.Find(pctx, merchant, anchor, radiusKm)

		if err != nil {
			if errors.Is(err, provider.ErrNotConfigured) {
				// Equivalent to an empty result; no call was made, so
				// nothing is charged.
				r.log(pctx).Debug("Provider not configured, skipping")
				continue
			}
			result.CostEstimate += p.BaseCost()
			result.LastError = err.Error()
			r.log(pctx).WithError(err).Warn("Provider lookup failed, continuing chain")
			continue
		}

		result.CostEstimate += p.BaseCost()
		result.CostEstimate += found.MeteredCost
		result.LastError = ""

		logger.With(logger.Fields{
			logger.FieldCount:      len(found.Locations),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldCost:       p.BaseCost() + found.MeteredCost,
		}).Debug(pctx, "Provider lookup finished")

		if p.CountsTowardSufficiency() {
			if len(found.Locations) >= r.cfg.SufficiencyThreshold {
				result.Locations = found.Locations
				result.Source = p.Name()
				return result
			}
			// Below threshold: escalate. Winner-take-all means these
			// results are discarded once a costlier tier is triggered.
			continue
		}

		if len(found.Locations) > 0 || i == len(r.providers)-1 {
			result.Locations = found.Locations
			result.Source = p.Name()
			return result
		}
	}

	return result
}

func (r *Resolver) store(ctx context.Context, key string, anchor domain.GeoPoint, radiusKm float64, result *ResolveResult) {
	payload, err := json.Marshal(result.Locations)
	if err != nil {
		return
	}
	meta, _ := json.Marshal(cacheMetadata{
		Source:    result.Source,
		Count:     len(result.Locations),
		Cost:      result.CostEstimate,
		RadiusKm:  radiusKm,
		AnchorLat: anchor.Lat,
		AnchorLon: anchor.Lon,
	})

	if err := r.cache.Set(ctx, domain.CacheTypeResolution, key, string(payload), string(meta), r.cfg.CacheTTL); err != nil {
		r.log(ctx).WithError(err).Warn("Cache write failed, result not cached")
	}
}
