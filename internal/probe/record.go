package probe

import (
	"strings"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/probe/history"
)

// HistoryRuns converts the successful runs of a scenario into history rows.
func HistoryRuns(o ScenarioOutcome) []history.Run {
	var runs []history.Run
	for _, c := range o.Cases {
		canonical := domain.CanonicalString(c.Case.Params)
		for _, res := range c.Results {
			ids := make([]string, len(res.Detections))
			for i, d := range res.Detections {
				ids[i] = d.ID
			}
			runs = append(runs, history.Run{
				Scenario:       o.Scenario.Name,
				CaseName:       c.Case.Name,
				Canonical:      canonical,
				RequestID:      res.RequestID,
				Seed:           res.Seed,
				TotalEvents:    res.Summary.TotalEvents,
				TotalAreaHa:    res.Summary.TotalAreaHa,
				MeanConfidence: res.Summary.MeanConfidence,
				DetectionIDs:   strings.Join(ids, ","),
				ProcessingTime: res.ProcessingTime,
			})
		}
	}
	return runs
}
