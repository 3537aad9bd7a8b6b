package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/fennelouski/cardoncue/internal/domain"
)

// KeyOptions controls how resolution requests are coarsened into cache keys.
// The grid must be coarse enough that nearby requests collide (cache reuse)
// but fine enough that distinct metro areas do not. 0.5° of latitude is about
// 55 km, which matches the 30–100 km radii this system searches with.
type KeyOptions struct {
	GridDegrees    float64
	RadiusBucketKm float64
}

// DefaultKeyOptions returns the standard coarsening parameters.
// Parameters: none.
// Returns:
//   - KeyOptions: 0.5° coordinate grid, 25 km radius buckets.
func DefaultKeyOptions() KeyOptions {
	return KeyOptions{GridDegrees: 0.5, RadiusBucketKm: 25}
}

func (o KeyOptions) normalized() KeyOptions {
	if o.GridDegrees <= 0 {
		o.GridDegrees = 0.5
	}
	if o.RadiusBucketKm <= 0 {
		o.RadiusBucketKm = 25
	}
	return o
}

// AreaKey maps an anchor point to its grid cell identifier. Jobs and cache
// entries for the same merchant in the same cell are considered equivalent.
// Parameters:
//   - anchor: search center point.
//   - opts: coarsening parameters.
// Returns:
//   - string: stable cell identifier, e.g. "68:-237".
func AreaKey(anchor domain.GeoPoint, opts KeyOptions) string {
	opts = opts.normalized()
	latCell := int(math.Floor(anchor.Lat / opts.GridDegrees))
	lonCell := int(math.Floor(anchor.Lon / opts.GridDegrees))
	return fmt.Sprintf("%d:%d", latCell, lonCell)
}

// radiusBucket coarsens a radius into its bucket ordinal (minimum 1).
func radiusBucket(radiusKm float64, opts KeyOptions) int {
	opts = opts.normalized()
	bucket := int(math.Ceil(radiusKm / opts.RadiusBucketKm))
	if bucket < 1 {
		bucket = 1
	}
	return bucket
}

// ResolutionKey derives the content digest a resolution result is cached
// under. The digest covers the folded merchant name, the anchor's grid cell,
// and the radius bucket, so near-identical requests share one entry and the
// key is independent of any job identity.
// Parameters:
//   - merchant: merchant name, folded before hashing.
//   - anchor: search center point.
//   - radiusKm: search radius in kilometers.
//   - opts: coarsening parameters.
// Returns:
//   - string: hex-encoded SHA-256 digest.
func ResolutionKey(merchant string, anchor domain.GeoPoint, radiusKm float64, opts KeyOptions) string {
	content := fmt.Sprintf("%s|%s|r%d",
		domain.NormalizeMerchantName(merchant),
		AreaKey(anchor, opts),
		radiusBucket(radiusKm, opts))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
