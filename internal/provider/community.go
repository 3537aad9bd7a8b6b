package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/go-resty/resty/v2"
)

// CommunityProvider looks up locations in the crowd-sourced OpenStreetMap
// dataset via an Overpass endpoint. Coverage is variable but free. The
// endpoint is public and rate limited, so this adapter serializes its own
// calls and enforces a minimum spacing between them; two calls are never in
// flight concurrently.
type CommunityProvider struct {
	client   *resty.Client
	endpoint string

	mu          sync.Mutex
	lastCall    time.Time
	minInterval time.Duration
}

// CommunityConfig holds configuration for the community adapter.
type CommunityConfig struct {
	Endpoint    string
	MinInterval time.Duration
	Timeout     time.Duration
}

// NewCommunityProvider creates the community-dataset adapter.
// Parameters:
//   - cfg: endpoint, call spacing, and timeout settings.
// Returns:
//   - *CommunityProvider: initialized adapter.
func NewCommunityProvider(cfg *CommunityConfig) *CommunityProvider {
	client := resty.New()
	client.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(25 * time.Second)
	}

	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = time.Second
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://overpass-api.de/api/interpreter"
	}

	return &CommunityProvider{
		client:      client,
		endpoint:    endpoint,
		minInterval: minInterval,
	}
}

func (p *CommunityProvider) Name() string                  { return "community" }
func (p *CommunityProvider) BaseCost() float64             { return 0 }
func (p *CommunityProvider) CountsTowardSufficiency() bool { return true }

// overpassResponse mirrors the subset of the Overpass JSON output we read.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Find queries Overpass for named OSM elements around the anchor.
// The call blocks until the minimum spacing since the previous call has
// elapsed; the adapter holds its lock for the whole request so calls are
// strictly serialized.
func (p *CommunityProvider) Find(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wait := p.minInterval - time.Since(p.lastCall); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	query := buildOverpassQuery(merchant, anchor, radiusKm)

	var out overpassResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": query}).
		SetResult(&out).
		Post(p.endpoint)
	p.lastCall = time.Now()

	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode())
	}

	locations := make([]domain.CandidateLocation, 0, len(out.Elements))
	for i := range out.Elements {
		if loc, ok := normalizeOverpassElement(&out.Elements[i]); ok {
			locations = append(locations, loc)
		}
	}

	return &Result{Locations: locations}, nil
}

// buildOverpassQuery produces a case-insensitive name match over nodes, ways,
// and relations inside the search radius.
func buildOverpassQuery(merchant string, anchor domain.GeoPoint, radiusKm float64) string {
	name := regexp.QuoteMeta(strings.TrimSpace(merchant))
	radiusM := int(radiusKm * 1000)
	return fmt.Sprintf(
		"[out:json][timeout:25];\nnwr[\"name\"~\"%s\",i](around:%d,%f,%f);\nout center 100;",
		name, radiusM, anchor.Lat, anchor.Lon)
}

// normalizeOverpassElement maps one OSM element to the common location shape.
// Elements without usable coordinates are dropped.
func normalizeOverpassElement(el *overpassElement) (domain.CandidateLocation, bool) {
	lat, lon := el.Lat, el.Lon
	if el.Center != nil {
		lat, lon = el.Center.Lat, el.Center.Lon
	}
	if lat == 0 && lon == 0 {
		return domain.CandidateLocation{}, false
	}

	tags := el.Tags
	name := tags["name"]
	if name == "" {
		return domain.CandidateLocation{}, false
	}

	street := tags["addr:street"]
	if num := tags["addr:housenumber"]; num != "" && street != "" {
		street = num + " " + street
	}

	phone := tags["phone"]
	if phone == "" {
		phone = tags["contact:phone"]
	}
	website := tags["website"]
	if website == "" {
		website = tags["contact:website"]
	}
	email := tags["email"]
	if email == "" {
		email = tags["contact:email"]
	}

	return domain.CandidateLocation{
		Name:       name,
		Street:     street,
		City:       tags["addr:city"],
		State:      tags["addr:state"],
		PostalCode: tags["addr:postcode"],
		Country:    tags["addr:country"],
		Lat:        lat,
		Lon:        lon,
		Phone:      phone,
		Email:      email,
		Website:    website,
	}, true
}
