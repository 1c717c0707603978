package domain

import "github.com/paulmach/orb/geojson"

// Detection is one synthetic fire event.
type Detection struct {
	ID         string            `json:"id"`
	AreaHa     float64           `json:"area_ha"`
	Confidence float64           `json:"confidence"`
	Location   string            `json:"location"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	DetectedAt string            `json:"detected_at"`
	Satellite  string            `json:"satellite"`
	Geometry   *geojson.Geometry `json:"geometry"`
}

// Summary aggregates the detections of one result.
type Summary struct {
	TotalEvents    int     `json:"total_events"`
	TotalAreaHa    float64 `json:"total_area_ha"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Metadata describes how a result was produced. Seed is the value returned
// by DeriveSeed for the request parameters.
type Metadata struct {
	Seed           Seed    `json:"seed"`
	ProcessingTime float64 `json:"processing_time"`
	AreaHash       int     `json:"area_hash"`
	CombinedValue  int     `json:"combined_value"`
	Satellite      string  `json:"satellite"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	MaxCloudCover  int     `json:"max_cloud_cover"`
}

// Result is the payload served once a detection job completes.
type Result struct {
	Summary    Summary     `json:"summary"`
	Detections []Detection `json:"detections"`
	Metadata   Metadata    `json:"metadata"`
}

// Summarize computes totals over detections. The mean confidence of an empty
// set is 0.
func Summarize(detections []Detection) Summary {
	s := Summary{TotalEvents: len(detections)}
	if len(detections) == 0 {
		return s
	}
	var confidence float64
	for _, d := range detections {
		s.TotalAreaHa += d.AreaHa
		confidence += d.Confidence
	}
	s.MeanConfidence = confidence / float64(len(detections))
	return s
}
