package domain

import (
	"errors"
	"math"
)

// earthRadiusKm is the mean Earth radius used for distance calculations.
const earthRadiusKm = 6371.0

var (
	ErrEmptyMerchantName = errors.New("merchant name must not be empty")
	ErrInvalidRadius     = errors.New("radius must be greater than zero")
	ErrInvalidCoordinate = errors.New("coordinates out of range")
)

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within the WGS84 coordinate range.
// Parameters: none.
// Returns:
//   - bool: true when lat ∈ [-90, 90] and lon ∈ [-180, 180].
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm returns the great-circle distance to another point in kilometers.
// Parameters:
//   - other: the second point.
// Returns:
//   - float64: haversine distance in kilometers.
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLon := (other.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ValidateSearch checks resolution inputs before any cache or provider activity.
// Parameters:
//   - merchant: merchant name, significant after trimming.
//   - anchor: search center point.
//   - radiusKm: search radius in kilometers.
// Returns:
//   - error: non-nil when any input is out of range.
func ValidateSearch(merchant string, anchor GeoPoint, radiusKm float64) error {
	if len(normalizeSpace(merchant)) == 0 {
		return ErrEmptyMerchantName
	}
	if radiusKm <= 0 {
		return ErrInvalidRadius
	}
	if !anchor.Valid() {
		return ErrInvalidCoordinate
	}
	return nil
}
