package domain

import "context"

// GeocodingResult is the place a provider found for a detection centroid.
type GeocodingResult struct {
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0 to 1
}

// Geocoder names the place at a coordinate. An empty result with a nil
// error means the provider knows no place there.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
