// Command probe checks that the detection service is deterministic: it submits
// the same queries repeatedly, compares the results and records them so later
// deployments can be compared against earlier ones.
//
// Usage:
//
//	probe run --scenario simple --runs 3 --url http://localhost:8000
//	probe params
//	probe seed --bounds=-122.5,37.5,-122.0,38.0 --start 2024-08-01 --end 2024-08-07
//	probe history --scenario simple
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-detection-service/internal/observability"
)

// errInconsistent makes the process exit non-zero without printing a usage
// message; the report already explains what failed.
var errInconsistent = errors.New("probe found inconsistent or failed runs")

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInconsistent) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "probe",
		Short:         "Determinism probe for the fire detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			opts.logger = observability.NewLogger(opts.logLevel, "text")
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newParamsCmd(),
		newSeedCmd(),
		newHistoryCmd(),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
