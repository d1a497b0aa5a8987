package places

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
)

// ErrNotConfigured marks missing venue-service credentials. Fatal for the
// one lookup call, never for the app; the UI offers a retry.
var ErrNotConfigured = errors.New("venue lookup service not configured")

// VenueClient talks to the external venue-lookup service. Configure endpoint
// and key with PLACES_API_URL and PLACES_API_KEY.
type VenueClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewVenueClient builds a client; empty values are resolved lazily per call
// so a missing key only fails the lookup itself.
func NewVenueClient(baseURL, apiKey string) *VenueClient {
	return &VenueClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Nearby returns an ordered list of venues around the given coordinates,
// optionally constrained to a free-text category.
func (c *VenueClient) Nearby(origin geo.Point, category string) ([]models.Venue, error) {
	if c.BaseURL == "" || c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	if category != "" {
		params.Set("category", category)
	}

	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("venue lookup failed: %s: %s", resp.Status, string(body))
	}

	// Some deployments wrap the list, some return it bare; accept both.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Venues []models.Venue `json:"venues"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Venues != nil {
		return wrapped.Venues, nil
	}
	var bare []models.Venue
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("undecodable venue response: %w", err)
	}
	return bare, nil
}
