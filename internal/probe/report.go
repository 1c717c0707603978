package probe

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
)

// Report compares the results of repeated runs of one case. Areas are
// compared at 2 decimals and confidences at 3, as displayed to users.
type Report struct {
	Runs        int
	Events      []int
	Areas       []float64
	Confidences []float64
	Seeds       []*uint32
	IDs         [][]string

	EventsConsistent      bool
	AreasConsistent       bool
	ConfidencesConsistent bool
	SeedsConsistent       bool
	IDsConsistent         bool
}

// Consistent reports whether every compared field matched across runs.
func (r Report) Consistent() bool {
	return r.EventsConsistent && r.AreasConsistent && r.ConfidencesConsistent &&
		r.SeedsConsistent && r.IDsConsistent
}

// Analyze compares results. Fewer than two results cannot show an
// inconsistency, so every check passes.
func Analyze(results []Results) Report {
	r := Report{Runs: len(results)}
	for _, res := range results {
		r.Events = append(r.Events, res.Summary.TotalEvents)
		r.Areas = append(r.Areas, Round(res.Summary.TotalAreaHa, 2))
		r.Confidences = append(r.Confidences, Round(res.Summary.MeanConfidence, 3))
		r.Seeds = append(r.Seeds, res.Seed)

		ids := make([]string, len(res.Detections))
		for i, d := range res.Detections {
			ids[i] = d.ID
		}
		r.IDs = append(r.IDs, ids)
	}

	r.EventsConsistent = allEqual(r.Events, func(a, b int) bool { return a == b })
	r.AreasConsistent = allEqual(r.Areas, func(a, b float64) bool { return a == b })
	r.ConfidencesConsistent = allEqual(r.Confidences, func(a, b float64) bool { return a == b })
	r.SeedsConsistent = allEqual(r.Seeds, func(a, b *uint32) bool {
		if a == nil || b == nil {
			return a == b
		}
		return *a == *b
	})
	r.IDsConsistent = allEqual(r.IDs, slices.Equal[[]string])
	return r
}

// CheckContract verifies a result against the locally derived seed and
// detection count. A result without a seed is only checked for its count.
func CheckContract(params domain.QueryParameters, res Results) []string {
	ev, err := domain.Evaluate(params)
	if err != nil {
		return []string{fmt.Sprintf("evaluate params: %v", err)}
	}

	var problems []string
	if res.Seed != nil && domain.Seed(*res.Seed) != ev.Seed {
		problems = append(problems, fmt.Sprintf("metadata.seed is %d, expected %d", *res.Seed, uint32(ev.Seed)))
	}
	if res.Summary.TotalEvents != int(ev.Count) {
		problems = append(problems, fmt.Sprintf("summary.total_events is %d, expected %d", res.Summary.TotalEvents, ev.Count))
	}
	if len(res.Detections) != int(ev.Count) {
		problems = append(problems, fmt.Sprintf("%d detections returned, expected %d", len(res.Detections), ev.Count))
	}
	return problems
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func allEqual[T any](vs []T, eq func(a, b T) bool) bool {
	for i := 1; i < len(vs); i++ {
		if !eq(vs[0], vs[i]) {
			return false
		}
	}
	return true
}
