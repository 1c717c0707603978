// Package mapbox labels detection locations through the Mapbox reverse
// geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// placeTypes limits reverse lookups to administrative names; street
// addresses mean little for a wildfire footprint.
const placeTypes = "place,locality,district,region"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode names the place containing (lat, lon). A point with no
// matching feature returns an empty result and no error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	result, err := c.reverse(ctx, lat, lon)
	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case result.PlaceName == "" && result.FormattedAddress == "":
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, err
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {placeTypes},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Features) == 0 {
		c.logger.Debug("no place found", "lat", lat, "lon", lon)
		return domain.GeocodingResult{}, nil
	}

	f := decoded.Features[0]
	return domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string  `json:"place_name"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}
