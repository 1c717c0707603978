package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Runner executes scenarios against a Client and prints a report.
type Runner struct {
	client *Client
	out    io.Writer
	logger *slog.Logger
}

// NewRunner creates a Runner writing its report to out.
func NewRunner(client *Client, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{client: client, out: out, logger: logger}
}

// CaseOutcome is what happened to one case of a scenario.
type CaseOutcome struct {
	Case      Case
	Results   []Results
	Failures  []error
	Report    Report
	Contract  []string
	Evaluated bool
}

// Passed reports whether enough runs succeeded and all of them agreed.
func (o CaseOutcome) Passed() bool {
	return len(o.Results) >= 2 && o.Report.Consistent() && len(o.Contract) == 0
}

// ScenarioOutcome collects the outcomes of every case.
type ScenarioOutcome struct {
	Scenario Scenario
	Cases    []CaseOutcome
}

// Passed reports whether every case passed.
func (o ScenarioOutcome) Passed() bool {
	for _, c := range o.Cases {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// RunScenario runs every case s.Runs times. Failed runs are reported and
// skipped; only cancellation of ctx stops the scenario early.
func (r *Runner) RunScenario(ctx context.Context, s Scenario) (ScenarioOutcome, error) {
	out := ScenarioOutcome{Scenario: s}

	r.printf("=== Scenario %s: %s ===\n", s.Name, s.Description)
	for _, c := range s.Cases {
		r.printf("\n--- %s ---\n", c.Name)
		r.printf("Parameters: %s\n", formatParams(c))

		co := CaseOutcome{Case: c}
		for i := 1; i <= s.Runs; i++ {
			res, err := r.client.Run(ctx, c.Params)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				r.logger.Warn("probe run failed", "case", c.Name, "run", i, "error", err)
				r.printf("  Run %d/%d: FAIL %v\n", i, s.Runs, err)
				co.Failures = append(co.Failures, err)
				continue
			}
			r.printf("  Run %d/%d: %d events, %.2f ha, seed %s\n",
				i, s.Runs, res.Summary.TotalEvents, Round(res.Summary.TotalAreaHa, 2), formatSeed(res.Seed))
			if s.Detailed {
				r.printDetections(res)
			}
			co.Results = append(co.Results, res)
			co.Contract = append(co.Contract, CheckContract(c.Params, res)...)
		}

		co.Report = Analyze(co.Results)
		co.Evaluated = len(co.Results) >= 2
		r.printCase(co, s.Detailed)
		out.Cases = append(out.Cases, co)
	}

	r.printSummary(out)
	return out, nil
}

func (r *Runner) printDetections(res Results) {
	for _, d := range res.Detections {
		r.printf("    - %s: %.2f ha, %.3f conf, %s\n", d.ID, Round(d.AreaHa, 2), Round(d.Confidence, 3), d.Location)
		r.printf("      Coords: [%g, %g]\n", d.FirstCoordinate[0], d.FirstCoordinate[1])
	}
}

func (r *Runner) printCase(co CaseOutcome, detailed bool) {
	if !co.Evaluated {
		r.printf("  Not enough successful runs to check consistency (%d of %d)\n",
			len(co.Results), len(co.Results)+len(co.Failures))
		return
	}
	rep := co.Report
	r.printf("  Events:      %v %s\n", rep.Events, mark(rep.EventsConsistent))
	r.printf("  Areas:       %v %s\n", rep.Areas, mark(rep.AreasConsistent))
	r.printf("  Confidences: %v %s\n", rep.Confidences, mark(rep.ConfidencesConsistent))
	r.printf("  Seeds:       %s %s\n", formatSeeds(rep.Seeds), mark(rep.SeedsConsistent))
	if detailed {
		r.printf("  IDs:         %v %s\n", rep.IDs, mark(rep.IDsConsistent))
	}
	for _, p := range co.Contract {
		r.printf("  Contract: %s\n", p)
	}
}

func (r *Runner) printSummary(o ScenarioOutcome) {
	r.printf("\n")
	for _, c := range o.Cases {
		status := "PASS"
		if !c.Passed() {
			status = "FAIL"
		}
		r.printf("  %-42s %s\n", c.Case.Name, status)
	}
	if o.Passed() {
		r.printf("\nAll runs produced consistent results.\n")
		return
	}
	r.printf("\nInconsistencies detected.\n")
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func mark(ok bool) string {
	if ok {
		return "OK"
	}
	return "MISMATCH"
}

func formatParams(c Case) string {
	p := c.Params
	return fmt.Sprintf("bounds=%v start=%s end=%s satellite=%s max_cloud_cover=%d",
		p.Bounds, p.StartDate, p.EndDate, p.Satellite, p.MaxCloudCover)
}

func formatSeed(s *uint32) string {
	if s == nil {
		return "N/A"
	}
	return fmt.Sprint(*s)
}

func formatSeeds(seeds []*uint32) string {
	parts := make([]string, len(seeds))
	for i, s := range seeds {
		parts[i] = formatSeed(s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
