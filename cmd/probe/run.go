package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-detection-service/internal/probe"
	"github.com/couchcryptid/fire-detection-service/internal/probe/history"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		scenario    string
		runs        int
		url         string
		interval    time.Duration
		maxAttempts int
		historyPath string
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a scenario repeatedly and compare the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := probe.LookupScenario(scenario)
			if err != nil {
				return err
			}
			if runs > 0 {
				s.Runs = runs
			}

			client := probe.NewClient(url, root.logger, probe.WithPolling(interval, maxAttempts))
			outcome, err := probe.NewRunner(client, cmd.OutOrStdout(), root.logger).RunScenario(cmd.Context(), s)
			if err != nil {
				return err
			}

			if !noHistory {
				if err := record(historyPath, outcome); err != nil {
					root.logger.Warn("failed to record history", "path", historyPath, "error", err)
				}
			}

			if !outcome.Passed() {
				return errInconsistent
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&scenario, "scenario", "simple", "scenario to run")
	f.IntVar(&runs, "runs", 0, "runs per case (0 uses the scenario default)")
	f.StringVar(&url, "url", envOr("PROBE_URL", "http://localhost:8000"), "service base URL")
	f.DurationVar(&interval, "interval", time.Second, "status poll interval")
	f.IntVar(&maxAttempts, "max-attempts", 30, "status polls before giving up")
	f.StringVar(&historyPath, "history", history.PathFromEnv(), "history database path")
	f.BoolVar(&noHistory, "no-history", false, "do not record runs")
	return cmd
}

func record(path string, outcome probe.ScenarioOutcome) error {
	runs := probe.HistoryRuns(outcome)
	if len(runs) == 0 {
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(runs...)
}
