package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/probe"
	"github.com/couchcryptid/fire-detection-service/internal/probe/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		scenario string
		limit    int
		path     string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Compare recorded runs of a scenario against the first recorded run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := probe.LookupScenario(scenario)
			if err != nil {
				return err
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			drifted := false
			for _, c := range s.Cases {
				canonical := domain.CanonicalString(c.Params)
				fmt.Fprintf(out, "--- %s ---\n", c.Name)

				baseline, err := store.Baseline(canonical)
				if errors.Is(err, history.ErrNoHistory) {
					fmt.Fprintln(out, "  no recorded runs")
					continue
				}
				if err != nil {
					return err
				}

				runs, err := store.Recent(canonical, limit)
				if err != nil {
					return err
				}
				for _, r := range runs {
					status := "OK"
					if !sameOutcome(baseline, r) {
						status = "DRIFT"
						drifted = true
					}
					fmt.Fprintf(out, "  %s %s: %d events, %.2f ha, seed %s %s\n",
						r.CreatedAt.Format("2006-01-02 15:04:05"), r.RequestID,
						r.TotalEvents, probe.Round(r.TotalAreaHa, 2), seedString(r.Seed), status)
				}
			}
			if drifted {
				return errInconsistent
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&scenario, "scenario", "simple", "scenario whose cases to show ("+strings.Join(probe.ScenarioNames(), ", ")+")")
	f.IntVar(&limit, "limit", 10, "most recent runs to show per case")
	f.StringVar(&path, "history", history.PathFromEnv(), "history database path")
	return cmd
}

// sameOutcome compares runs the way the consistency report does.
func sameOutcome(a, b history.Run) bool {
	if (a.Seed == nil) != (b.Seed == nil) || (a.Seed != nil && *a.Seed != *b.Seed) {
		return false
	}
	return a.TotalEvents == b.TotalEvents &&
		probe.Round(a.TotalAreaHa, 2) == probe.Round(b.TotalAreaHa, 2) &&
		probe.Round(a.MeanConfidence, 3) == probe.Round(b.MeanConfidence, 3) &&
		a.DetectionIDs == b.DetectionIDs
}

func seedString(s *uint32) string {
	if s == nil {
		return "N/A"
	}
	return fmt.Sprint(*s)
}
