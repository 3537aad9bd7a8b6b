package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelouski/cardoncue/internal/domain"
)

const overpassFixture = `{
	"elements": [
		{
			"type": "node", "id": 1, "lat": 34.05, "lon": -118.24,
			"tags": {
				"name": "Costco Wholesale",
				"addr:housenumber": "2901",
				"addr:street": "Los Feliz Blvd",
				"addr:city": "Los Angeles",
				"addr:state": "CA",
				"addr:postcode": "90039",
				"phone": "+1-323-644-5201",
				"website": "https://www.costco.com"
			}
		},
		{
			"type": "way", "id": 2,
			"center": {"lat": 34.10, "lon": -118.30},
			"tags": {"name": "Costco Business Center", "contact:phone": "+1-323-000-0000"}
		},
		{
			"type": "node", "id": 3, "lat": 34.06, "lon": -118.25,
			"tags": {"amenity": "fuel"}
		},
		{
			"type": "way", "id": 4,
			"tags": {"name": "No Coordinates"}
		}
	]
}`

func newCommunityTestServer(t *testing.T, hits *int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "out:json")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestCommunityFindParsesElements(t *testing.T) {
	var hits int32
	server := newCommunityTestServer(t, &hits, overpassFixture)
	defer server.Close()

	p := NewCommunityProvider(&CommunityConfig{Endpoint: server.URL, MinInterval: time.Millisecond})

	res, err := p.Find(context.Background(), "Costco", domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}, 50)
	require.NoError(t, err)

	// Unnamed and coordinate-less elements are dropped.
	require.Len(t, res.Locations, 2)
	assert.Zero(t, res.MeteredCost)

	first := res.Locations[0]
	assert.Equal(t, "Costco Wholesale", first.Name)
	assert.Equal(t, "2901 Los Feliz Blvd", first.Street)
	assert.Equal(t, "Los Angeles", first.City)
	assert.Equal(t, "CA", first.State)
	assert.Equal(t, "90039", first.PostalCode)
	assert.Equal(t, "+1-323-644-5201", first.Phone)
	assert.Equal(t, "https://www.costco.com", first.Website)

	// Way elements use their computed center, and contact:* tags fall back.
	second := res.Locations[1]
	assert.Equal(t, 34.10, second.Lat)
	assert.Equal(t, -118.30, second.Lon)
	assert.Equal(t, "+1-323-000-0000", second.Phone)
}

func TestCommunityFindEnforcesCallSpacing(t *testing.T) {
	var hits int32
	server := newCommunityTestServer(t, &hits, `{"elements":[]}`)
	defer server.Close()

	interval := 150 * time.Millisecond
	p := NewCommunityProvider(&CommunityConfig{Endpoint: server.URL, MinInterval: interval})

	anchor := domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}
	_, err := p.Find(context.Background(), "Costco", anchor, 50)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Find(context.Background(), "Walmart", anchor, 50)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), interval,
		"second call must wait out the minimum spacing")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCommunityFindCancelledDuringWait(t *testing.T) {
	var hits int32
	server := newCommunityTestServer(t, &hits, `{"elements":[]}`)
	defer server.Close()

	p := NewCommunityProvider(&CommunityConfig{Endpoint: server.URL, MinInterval: 10 * time.Second})

	anchor := domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}
	_, err := p.Find(context.Background(), "Costco", anchor, 50)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Find(ctx, "Walmart", anchor, 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "cancelled call never reaches the endpoint")
}

func TestCommunityFindServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewCommunityProvider(&CommunityConfig{Endpoint: server.URL, MinInterval: time.Millisecond})

	_, err := p.Find(context.Background(), "Costco", domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestBuildOverpassQueryEscapesName(t *testing.T) {
	query := buildOverpassQuery(`Trader Joe's (No. 42)`, domain.GeoPoint{Lat: 34, Lon: -118}, 25)

	assert.Contains(t, query, `around:25000`)
	// Regex metacharacters in the merchant name must arrive quoted.
	assert.Contains(t, query, `\(No\. 42\)`)
}
