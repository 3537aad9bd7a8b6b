package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/go-resty/resty/v2"
)

var weekdayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// CommercialProvider looks up locations through a paid structured-places API
// (Google Places shaped). Coverage is near-complete and quality is highest of
// the three tiers, but every call is metered: the text search and each
// per-result details lookup are billed separately and both count toward the
// reported cost.
type CommercialProvider struct {
	client      *resty.Client
	baseURL     string
	apiKey      string
	searchCost  float64
	detailsCost float64
	maxDetails  int
}

// CommercialConfig holds configuration for the commercial adapter.
type CommercialConfig struct {
	APIKey      string
	BaseURL     string
	SearchCost  float64
	DetailsCost float64
	MaxDetails  int
	Timeout     time.Duration
}

// NewCommercialProvider creates the commercial-places adapter.
// Parameters:
//   - cfg: credential, endpoint, and per-call pricing settings.
// Returns:
//   - *CommercialProvider: initialized adapter; Find fails fast with
//     ErrNotConfigured when no API key is set.
func NewCommercialProvider(cfg *CommercialConfig) *CommercialProvider {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(15 * time.Second)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://places.googleapis.com/v1"
	}

	maxDetails := cfg.MaxDetails
	if maxDetails <= 0 {
		maxDetails = 10
	}

	return &CommercialProvider{
		client:      client,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		searchCost:  cfg.SearchCost,
		detailsCost: cfg.DetailsCost,
		maxDetails:  maxDetails,
	}
}

func (p *CommercialProvider) Name() string                  { return "commercial" }
func (p *CommercialProvider) BaseCost() float64             { return 0 }
func (p *CommercialProvider) CountsTowardSufficiency() bool { return false }

// Configured reports whether a credential is present.
func (p *CommercialProvider) Configured() bool {
	return p.apiKey != ""
}

type placesSearchRequest struct {
	TextQuery    string              `json:"textQuery"`
	LocationBias *placesLocationBias `json:"locationBias,omitempty"`
}

type placesLocationBias struct {
	Circle placesCircle `json:"circle"`
}

type placesCircle struct {
	Center placesLatLng `json:"center"`
	Radius float64      `json:"radius"` // meters
}

type placesLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type placesSearchResponse struct {
	Places []placesPlace `json:"places"`
}

type placesPlace struct {
	ID            string               `json:"id"`
	DisplayName   *placesLocalizedText `json:"displayName,omitempty"`
	Location      *placesLatLng        `json:"location,omitempty"`
	PostalAddress *placesPostalAddress `json:"postalAddress,omitempty"`
}

type placesLocalizedText struct {
	Text string `json:"text"`
}

type placesPostalAddress struct {
	RegionCode         string   `json:"regionCode,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	AddressLines       []string `json:"addressLines,omitempty"`
}

type placesDetailsResponse struct {
	NationalPhoneNumber string              `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string              `json:"websiteUri,omitempty"`
	RegularOpeningHours *placesOpeningHours `json:"regularOpeningHours,omitempty"`
}

type placesOpeningHours struct {
	Periods []placesPeriod `json:"periods"`
}

type placesPeriod struct {
	Open  *placesDayTime `json:"open,omitempty"`
	Close *placesDayTime `json:"close,omitempty"`
}

type placesDayTime struct {
	Day    int `json:"day"` // 0 = Sunday
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Find runs a metered text search plus per-result details lookups.
// The reported metered cost covers the search call and every details call
// actually issued.
func (p *CommercialProvider) Find(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*Result, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	req := placesSearchRequest{
		TextQuery: merchant,
		LocationBias: &placesLocationBias{
			Circle: placesCircle{
				Center: placesLatLng{Latitude: anchor.Lat, Longitude: anchor.Lon},
				Radius: radiusKm * 1000,
			},
		},
	}

	var out placesSearchResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Goog-Api-Key", p.apiKey).
		SetHeader("X-Goog-FieldMask", "places.id,places.displayName,places.location,places.postalAddress").
		SetBody(req).
		SetResult(&out).
		Post(p.baseURL + "/places:searchText")
	if err != nil {
		return nil, fmt.Errorf("places search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("places search returned status %d", resp.StatusCode())
	}

	cost := p.searchCost
	locations := make([]domain.CandidateLocation, 0, len(out.Places))

	for i := range out.Places {
		place := &out.Places[i]
		if place.Location == nil || place.DisplayName == nil {
			continue
		}

		loc := domain.CandidateLocation{
			Name: place.DisplayName.Text,
			Lat:  place.Location.Latitude,
			Lon:  place.Location.Longitude,
		}
		if addr := place.PostalAddress; addr != nil {
			if len(addr.AddressLines) > 0 {
				loc.Street = addr.AddressLines[0]
			}
			loc.City = addr.Locality
			loc.State = addr.AdministrativeArea
			loc.PostalCode = addr.PostalCode
			loc.Country = addr.RegionCode
		}

		// Details lookups are capped; beyond the cap we keep the search
		// fields and skip the extra metered call.
		if i < p.maxDetails {
			details, err := p.fetchDetails(ctx, place.ID)
			cost += p.detailsCost
			if err == nil && details != nil {
				loc.Phone = details.NationalPhoneNumber
				loc.Website = details.WebsiteURI
				loc.Hours = convertPlacesHours(details.RegularOpeningHours)
			}
		}

		locations = append(locations, loc)
	}

	return &Result{Locations: locations, MeteredCost: cost}, nil
}

func (p *CommercialProvider) fetchDetails(ctx context.Context, placeID string) (*placesDetailsResponse, error) {
	var out placesDetailsResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Goog-Api-Key", p.apiKey).
		SetHeader("X-Goog-FieldMask", "nationalPhoneNumber,websiteUri,regularOpeningHours").
		SetResult(&out).
		Get(p.baseURL + "/places/" + placeID)
	if err != nil {
		return nil, fmt.Errorf("places details failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("places details returned status %d", resp.StatusCode())
	}
	return &out, nil
}

// convertPlacesHours maps the places periods model to the weekly schedule.
func convertPlacesHours(hours *placesOpeningHours) domain.OpeningHours {
	if hours == nil || len(hours.Periods) == 0 {
		return domain.OpeningHours{}
	}

	weekly := make(map[string][]domain.TimeRange)
	for _, period := range hours.Periods {
		if period.Open == nil || period.Close == nil {
			continue
		}
		day := period.Open.Day
		if day < 0 || day > 6 {
			continue
		}
		name := weekdayNames[day]
		weekly[name] = append(weekly[name], domain.TimeRange{
			Open:  fmt.Sprintf("%02d:%02d", period.Open.Hour, period.Open.Minute),
			Close: fmt.Sprintf("%02d:%02d", period.Close.Hour, period.Close.Minute),
		})
	}
	if len(weekly) == 0 {
		return domain.OpeningHours{}
	}
	return domain.OpeningHours{Weekly: weekly}
}
