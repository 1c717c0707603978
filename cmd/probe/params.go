package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/probe"
)

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List scenarios with their queries and expected outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range probe.ScenarioNames() {
				s, err := probe.LookupScenario(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%d runs): %s\n", s.Name, s.Runs, s.Description)
				for _, c := range s.Cases {
					ev, err := domain.Evaluate(c.Params)
					if err != nil {
						return fmt.Errorf("scenario %s case %s: %w", s.Name, c.Name, err)
					}
					fmt.Fprintf(out, "  %s\n", c.Name)
					fmt.Fprintf(out, "    %s\n", ev.Canonical)
					fmt.Fprintf(out, "    seed %d, %d detections\n", uint32(ev.Seed), ev.Count)
				}
			}
			return nil
		},
	}
}
