package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/go-resty/resty/v2"
)

const aiSystemPrompt = `You are a business location researcher. Given a merchant name and a search area, list the physical store locations of that merchant you know of inside the area. Respond with a JSON array only, no prose. Each element: {"name": string, "street": string, "city": string, "state": string, "postal_code": string, "country": string, "lat": number, "lon": number, "phone": string, "website": string}. Omit fields you do not know. Respond with [] if you know of none.`

// AIDiscoveryProvider asks an OpenAI-compatible chat model for merchant
// locations. Confidence is the lowest of the three tiers: the model is seeded
// only with the merchant name and search area. It is invoked strictly as the
// last resort, and a fixed cost is charged per invocation whether or not
// anything comes back.
type AIDiscoveryProvider struct {
	client    *resty.Client
	endpoint  string
	model     string
	apiKey    string
	fixedCost float64
}

// AIDiscoveryConfig holds configuration for the AI discovery adapter.
type AIDiscoveryConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	FixedCost float64
	Timeout   time.Duration
}

// NewAIDiscoveryProvider creates the AI discovery adapter.
// Parameters:
//   - cfg: credential, model, endpoint, and fixed-cost settings.
// Returns:
//   - *AIDiscoveryProvider: initialized adapter.
func NewAIDiscoveryProvider(cfg *AIDiscoveryConfig) *AIDiscoveryProvider {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(60 * time.Second)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &AIDiscoveryProvider{
		client:    client,
		endpoint:  baseURL + "/chat/completions",
		model:     model,
		apiKey:    cfg.APIKey,
		fixedCost: cfg.FixedCost,
	}
}

func (p *AIDiscoveryProvider) Name() string                  { return "ai" }
func (p *AIDiscoveryProvider) BaseCost() float64             { return p.fixedCost }
func (p *AIDiscoveryProvider) CountsTowardSufficiency() bool { return false }

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// aiLocation mirrors the JSON shape the prompt asks for.
type aiLocation struct {
	Name       string  `json:"name"`
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Phone      string  `json:"phone"`
	Website    string  `json:"website"`
}

// Find asks the model for locations and parses its JSON reply defensively:
// code fences are stripped and entries without a name or with out-of-range
// coordinates are skipped rather than failing the call.
func (p *AIDiscoveryProvider) Find(ctx context.Context, merchant string, anchor domain.GeoPoint, radiusKm float64) (*Result, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}

	userPrompt := fmt.Sprintf(
		"Merchant: %s\nSearch area: within %.0f km of latitude %.4f, longitude %.4f",
		merchant, radiusKm, anchor.Lat, anchor.Lon)

	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: aiSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: 2000,
	}

	var resp chatResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat API: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("chat API returned status %d", httpResp.StatusCode())
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("chat API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return &Result{}, nil
	}

	locations := parseAILocations(resp.Choices[0].Message.Content)
	return &Result{Locations: locations}, nil
}

// parseAILocations extracts valid candidates from the model's reply.
func parseAILocations(content string) []domain.CandidateLocation {
	content = stripCodeFence(content)

	var raw []aiLocation
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}

	locations := make([]domain.CandidateLocation, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		point := domain.GeoPoint{Lat: item.Lat, Lon: item.Lon}
		if !point.Valid() || (item.Lat == 0 && item.Lon == 0) {
			continue
		}
		locations = append(locations, domain.CandidateLocation{
			Name:       item.Name,
			Street:     item.Street,
			City:       item.City,
			State:      item.State,
			PostalCode: item.PostalCode,
			Country:    item.Country,
			Lat:        item.Lat,
			Lon:        item.Lon,
			Phone:      item.Phone,
			Website:    item.Website,
		})
	}
	return locations
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
