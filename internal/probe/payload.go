package probe

import (
	"encoding/json"
	"fmt"
)

// Summary is the aggregate part of a results payload.
type Summary struct {
	TotalEvents    int
	TotalAreaHa    float64
	MeanConfidence float64
}

// Detection holds the fields the probe compares between runs.
type Detection struct {
	ID              string
	AreaHa          float64
	Confidence      float64
	Location        string
	FirstCoordinate [2]float64
}

// Results is a decoded GET /api/v1/results payload.
type Results struct {
	RequestID      string
	Summary        Summary
	Detections     []Detection
	Seed           *uint32 // always set by DecodeResults; nil only in hand-built values
	ProcessingTime float64
}

// Wire shapes. Pointers distinguish a missing field from a zero value.

type wireResults struct {
	RequestID  string           `json:"request_id"`
	Summary    *wireSummary     `json:"summary"`
	Detections *[]wireDetection `json:"detections"`
	Metadata   *wireMetadata    `json:"metadata"`
}

type wireSummary struct {
	TotalEvents    *int     `json:"total_events"`
	TotalAreaHa    *float64 `json:"total_area_ha"`
	MeanConfidence *float64 `json:"mean_confidence"`
}

type wireDetection struct {
	ID         *string       `json:"id"`
	AreaHa     *float64      `json:"area_ha"`
	Confidence *float64      `json:"confidence"`
	Location   *string       `json:"location"`
	Geometry   *wireGeometry `json:"geometry"`
}

type wireGeometry struct {
	Coordinates [][][]float64 `json:"coordinates"`
}

type wireMetadata struct {
	Seed           *uint32  `json:"seed"`
	ProcessingTime *float64 `json:"processing_time"`
}

// MissingFieldError reports a required field absent from a payload.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("results payload missing %s", e.Path)
}

func missing(path string) error {
	return &MissingFieldError{Path: path}
}

// DecodeResults parses a results payload. Every summary field, the
// detections array, metadata.seed and the compared detection fields are
// required; metadata.processing_time is optional.
func DecodeResults(body []byte) (Results, error) {
	var w wireResults
	if err := json.Unmarshal(body, &w); err != nil {
		return Results{}, fmt.Errorf("decode results payload: %w", err)
	}

	if w.Summary == nil {
		return Results{}, missing("summary")
	}
	switch {
	case w.Summary.TotalEvents == nil:
		return Results{}, missing("summary.total_events")
	case w.Summary.TotalAreaHa == nil:
		return Results{}, missing("summary.total_area_ha")
	case w.Summary.MeanConfidence == nil:
		return Results{}, missing("summary.mean_confidence")
	case w.Detections == nil:
		return Results{}, missing("detections")
	case w.Metadata == nil || w.Metadata.Seed == nil:
		return Results{}, missing("metadata.seed")
	}

	r := Results{
		RequestID: w.RequestID,
		Summary: Summary{
			TotalEvents:    *w.Summary.TotalEvents,
			TotalAreaHa:    *w.Summary.TotalAreaHa,
			MeanConfidence: *w.Summary.MeanConfidence,
		},
		Detections: make([]Detection, 0, len(*w.Detections)),
		Seed:       w.Metadata.Seed,
	}

	for i, d := range *w.Detections {
		det, err := decodeDetection(d, fmt.Sprintf("detections[%d]", i))
		if err != nil {
			return Results{}, err
		}
		r.Detections = append(r.Detections, det)
	}

	if w.Metadata.ProcessingTime != nil {
		r.ProcessingTime = *w.Metadata.ProcessingTime
	}
	return r, nil
}

func decodeDetection(d wireDetection, path string) (Detection, error) {
	switch {
	case d.ID == nil:
		return Detection{}, missing(path + ".id")
	case d.AreaHa == nil:
		return Detection{}, missing(path + ".area_ha")
	case d.Confidence == nil:
		return Detection{}, missing(path + ".confidence")
	case d.Location == nil:
		return Detection{}, missing(path + ".location")
	case d.Geometry == nil:
		return Detection{}, missing(path + ".geometry")
	case len(d.Geometry.Coordinates) == 0 || len(d.Geometry.Coordinates[0]) == 0 || len(d.Geometry.Coordinates[0][0]) < 2:
		return Detection{}, missing(path + ".geometry.coordinates[0][0]")
	}

	first := d.Geometry.Coordinates[0][0]
	return Detection{
		ID:              *d.ID,
		AreaHa:          *d.AreaHa,
		Confidence:      *d.Confidence,
		Location:        *d.Location,
		FirstCoordinate: [2]float64{first[0], first[1]},
	}, nil
}
