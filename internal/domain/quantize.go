package domain

import "math"

const (
	hashModulus = 1000
	bucketWidth = 200
)

// DetectionCount is the number of synthetic detections for a query, 0 through 4.
type DetectionCount int

// MaxDetectionCount is the largest value Quantize returns.
const MaxDetectionCount DetectionCount = hashModulus/bucketWidth - 1

// Area returns the bounding-box area in square degrees. Bounds must be
// ordered min before max; an inverted box is rejected rather than yielding a
// positive area.
func Area(bounds []float64) (float64, error) {
	if err := validateBounds(bounds); err != nil {
		return 0, err
	}
	area := (bounds[2] - bounds[0]) * (bounds[3] - bounds[1])
	if !(area > 0) || math.IsInf(area, 0) {
		return 0, invalidf("bounds area %s must be positive", FormatFloat(area))
	}
	return area, nil
}

// AreaHash hashes the formatted area and reduces it into [0, 999].
func AreaHash(area float64) int {
	return int(RollingHash32(FormatFloat(area)) % hashModulus)
}

// Combine mixes an area hash with the seed into [0, 999].
func Combine(areaHash int, seed Seed) int {
	return (areaHash + int(uint32(seed)%hashModulus)) % hashModulus
}

// CountForCombined maps a combined value onto its bucket. Lower bounds are
// inclusive, so 200 maps to 1.
func CountForCombined(combined int) DetectionCount {
	switch {
	case combined < 200:
		return 0
	case combined < 400:
		return 1
	case combined < 600:
		return 2
	case combined < 800:
		return 3
	default:
		return 4
	}
}

// Quantize turns a seed and the query bounds into a detection count.
func Quantize(seed Seed, bounds []float64) (DetectionCount, error) {
	area, err := Area(bounds)
	if err != nil {
		return 0, err
	}
	return CountForCombined(Combine(AreaHash(area), seed)), nil
}

// Evaluation is every intermediate value of one query evaluation.
type Evaluation struct {
	Canonical string         `json:"canonical"`
	Seed      Seed           `json:"seed"`
	Area      float64        `json:"area"`
	AreaHash  int            `json:"area_hash"`
	SeedMod   int            `json:"seed_mod"`
	Combined  int            `json:"combined_value"`
	Count     DetectionCount `json:"num_detections"`
}

// Evaluate derives the seed and the detection count for p.
func Evaluate(p QueryParameters) (Evaluation, error) {
	seed, err := DeriveSeed(p)
	if err != nil {
		return Evaluation{}, err
	}
	area, err := Area(p.Bounds)
	if err != nil {
		return Evaluation{}, err
	}
	areaHash := AreaHash(area)
	combined := Combine(areaHash, seed)
	return Evaluation{
		Canonical: CanonicalString(p),
		Seed:      seed,
		Area:      area,
		AreaHash:  areaHash,
		SeedMod:   int(uint32(seed) % hashModulus),
		Combined:  combined,
		Count:     CountForCombined(combined),
	}, nil
}
