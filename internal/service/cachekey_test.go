package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fennelouski/cardoncue/internal/domain"
)

func TestAreaKey(t *testing.T) {
	opts := DefaultKeyOptions()

	la := domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}
	assert.Equal(t, "68:-237", AreaKey(la, opts))

	// Anywhere inside the same half-degree cell maps to the same key.
	assert.Equal(t, AreaKey(la, opts), AreaKey(domain.GeoPoint{Lat: 34.4, Lon: -118.4}, opts))

	// A different metro area does not.
	sf := domain.GeoPoint{Lat: 37.7749, Lon: -122.4194}
	assert.NotEqual(t, AreaKey(la, opts), AreaKey(sf, opts))
}

func TestResolutionKeyCollisions(t *testing.T) {
	opts := DefaultKeyOptions()
	anchor := domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}

	base := ResolutionKey("Costco", anchor, 50, opts)

	cases := []struct {
		name     string
		merchant string
		anchor   domain.GeoPoint
		radius   float64
		same     bool
	}{
		{"identical", "Costco", anchor, 50, true},
		{"case and whitespace folded", "  COSTCO ", anchor, 50, true},
		{"same grid cell", "Costco", domain.GeoPoint{Lat: 34.3, Lon: -118.3}, 50, true},
		{"same radius bucket", "Costco", anchor, 30, true},
		{"different merchant", "Walmart", anchor, 50, false},
		{"different cell", "Costco", domain.GeoPoint{Lat: 34.6, Lon: -118.2437}, 50, false},
		{"different radius bucket", "Costco", anchor, 75, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := ResolutionKey(tc.merchant, tc.anchor, tc.radius, opts)
			if tc.same {
				assert.Equal(t, base, key)
			} else {
				assert.NotEqual(t, base, key)
			}
		})
	}
}

func TestRadiusBucketFloor(t *testing.T) {
	opts := DefaultKeyOptions()

	// Tiny radii share the first bucket rather than producing bucket zero.
	assert.Equal(t, 1, radiusBucket(0.1, opts))
	assert.Equal(t, 1, radiusBucket(25, opts))
	assert.Equal(t, 2, radiusBucket(25.1, opts))
}
