package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// CoordinateLabel formats a point as "lat, lon" with 4 decimals.
func CoordinateLabel(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// LocationLabel names a detection location. When geocoder is nil, fails, or
// returns nothing, the coordinate label is used instead.
func LocationLabel(ctx context.Context, lat, lon float64, geocoder Geocoder, logger *slog.Logger) string {
	fallback := CoordinateLabel(lat, lon)
	if geocoder == nil {
		return fallback
	}

	result, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return fallback
	}
	if result.PlaceName != "" {
		return result.PlaceName
	}
	if result.FormattedAddress != "" {
		return result.FormattedAddress
	}
	return fallback
}
