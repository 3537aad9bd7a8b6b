// Package provider contains the location lookup adapters. Each adapter wraps
// one external data source behind the same Find capability and normalizes its
// native schema into domain.CandidateLocation. The resolver walks adapters in
// increasing-cost order; adding a source means adding an adapter, not touching
// the resolver.
package provider

import (
	"context"
	"errors"

	"github.com/fennelouski/cardoncue/internal/domain"
)

// ErrNotConfigured is returned by adapters whose credentials are missing.
// The resolver treats it identically to an empty result.
var ErrNotConfigured = errors.New("provider not configured")

// Result is the outcome of one Find invocation.
type Result struct {
	Locations []domain.CandidateLocation
	// MeteredCost is the usage-based cost of this specific invocation
	// (e.g. per-call billing of a paid API). Zero for free sources.
	MeteredCost float64
}

// Provider is one location lookup strategy.
type Provider interface {
	// Name returns the stable identifier recorded as a job's data source.
	Name() string

	// Find looks up physical locations of a merchant around an anchor point.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - merchant: merchant name as received.
	//   - anchor: search center point.
	//   - radiusKm: search radius in kilometers.
	// Returns:
	//   - *Result: normalized locations plus metered cost.
	//   - error: ErrNotConfigured, or a transient lookup failure.
	Find(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*Result, error)

	// BaseCost is charged on every invocation, successful or not.
	BaseCost() float64

	// CountsTowardSufficiency reports whether this adapter's result count is
	// compared against the sufficiency threshold. Terminal tiers return false:
	// any non-empty result they produce is accepted outright.
	CountsTowardSufficiency() bool
}
