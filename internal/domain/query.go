package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format accepted for start and end dates.
const DateLayout = "2006-01-02"

// ErrInvalidParameters marks a malformed query. It is a caller error and is
// never retried.
var ErrInvalidParameters = errors.New("invalid parameters")

// Known satellite identifiers. The enumeration is open: other names are
// accepted and hashed like any other string.
const (
	SatelliteSentinel2 = "sentinel2"
	SatelliteLandsat   = "landsat"
	SatelliteMODIS     = "modis"
	SatelliteVIIRS     = "viirs"
)

// QueryParameters is the input of a fire-detection request.
type QueryParameters struct {
	Bounds        []float64 `json:"bounds"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	Satellite     string    `json:"satellite"`
	MaxCloudCover int       `json:"max_cloud_cover"`
}

// Validate checks every field invariant and returns an error wrapping
// ErrInvalidParameters that names the first offending field.
func (p QueryParameters) Validate() error {
	if err := validateBounds(p.Bounds); err != nil {
		return err
	}

	start, end, err := p.DateRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return invalidf("end_date %s is before start_date %s", p.EndDate, p.StartDate)
	}

	if p.Satellite == "" {
		return invalidf("satellite is required")
	}
	if p.MaxCloudCover < 0 || p.MaxCloudCover > 100 {
		return invalidf("max_cloud_cover %d is outside [0, 100]", p.MaxCloudCover)
	}
	return nil
}

// DateRange returns the parsed acquisition window.
func (p QueryParameters) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("start_date %q is not YYYY-MM-DD", p.StartDate)
	}
	end, err := time.Parse(DateLayout, p.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("end_date %q is not YYYY-MM-DD", p.EndDate)
	}
	return start, end, nil
}

// checkBoundsShape enforces arity and finiteness only. The seed derivation
// needs nothing more.
func checkBoundsShape(bounds []float64) error {
	if len(bounds) != 4 {
		return invalidf("bounds must have 4 values, got %d", len(bounds))
	}
	for i, v := range bounds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidf("bounds[%d] is not finite", i)
		}
	}
	return nil
}

func validateBounds(bounds []float64) error {
	if err := checkBoundsShape(bounds); err != nil {
		return err
	}
	if bounds[0] >= bounds[2] {
		return invalidf("bounds min_lon %s must be less than max_lon %s", FormatFloat(bounds[0]), FormatFloat(bounds[2]))
	}
	if bounds[1] >= bounds[3] {
		return invalidf("bounds min_lat %s must be less than max_lat %s", FormatFloat(bounds[1]), FormatFloat(bounds[3]))
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
}
