package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelouski/cardoncue/internal/domain"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "Merchant:")

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestAIDiscoveryNotConfigured(t *testing.T) {
	p := NewAIDiscoveryProvider(&AIDiscoveryConfig{FixedCost: 0.05})

	_, err := p.Find(context.Background(), "Costco", domain.GeoPoint{Lat: 34, Lon: -118}, 50)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.InDelta(t, 0.05, p.BaseCost(), 1e-9)
}

func TestAIDiscoveryFind(t *testing.T) {
	content := "```json\n[{\"name\": \"Costco Wholesale\", \"city\": \"Los Angeles\", \"lat\": 34.05, \"lon\": -118.24}]\n```"
	server := httptest.NewServer(chatReply(t, content))
	defer server.Close()

	p := NewAIDiscoveryProvider(&AIDiscoveryConfig{APIKey: "test-key", BaseURL: server.URL})

	res, err := p.Find(context.Background(), "Costco", domain.GeoPoint{Lat: 34.0522, Lon: -118.2437}, 50)
	require.NoError(t, err)

	require.Len(t, res.Locations, 1)
	assert.Equal(t, "Costco Wholesale", res.Locations[0].Name)
	assert.Equal(t, "Los Angeles", res.Locations[0].City)
	// Metered cost stays zero; the fixed cost is reported via BaseCost.
	assert.Zero(t, res.MeteredCost)
}

func TestAIDiscoveryFindEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(chatReply(t, "[]"))
	defer server.Close()

	p := NewAIDiscoveryProvider(&AIDiscoveryConfig{APIKey: "test-key", BaseURL: server.URL})

	res, err := p.Find(context.Background(), "Nowhere Mart", domain.GeoPoint{Lat: 34, Lon: -118}, 50)
	require.NoError(t, err)
	assert.Empty(t, res.Locations)
}

func TestAIDiscoveryFindAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	p := NewAIDiscoveryProvider(&AIDiscoveryConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := p.Find(context.Background(), "Costco", domain.GeoPoint{Lat: 34, Lon: -118}, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestParseAILocations(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"plain array", `[{"name": "A", "lat": 34.0, "lon": -118.0}]`, 1},
		{"fenced json", "```json\n[{\"name\": \"A\", \"lat\": 34.0, \"lon\": -118.0}]\n```", 1},
		{"bare fence", "```\n[{\"name\": \"A\", \"lat\": 34.0, \"lon\": -118.0}]\n```", 1},
		{"empty array", `[]`, 0},
		{"prose instead of json", "I don't know of any locations.", 0},
		{"missing name skipped", `[{"lat": 34.0, "lon": -118.0}]`, 0},
		{"null island skipped", `[{"name": "A", "lat": 0, "lon": 0}]`, 0},
		{"out of range skipped", `[{"name": "A", "lat": 95.0, "lon": -118.0}]`, 0},
		{"mixed validity", `[{"name": "A", "lat": 34.0, "lon": -118.0}, {"name": "", "lat": 35.0, "lon": -118.0}]`, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, parseAILocations(tc.content), tc.want)
		})
	}
}
