package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/probe"
)

func newSeedCmd() *cobra.Command {
	params := probe.BayArea()
	var repeats int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Show how a query's seed and detection count are derived",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stable, err := probe.Explain(cmd.OutOrStdout(), params, repeats)
			if err != nil {
				return err
			}
			if !stable {
				return errors.New("seed derivation is not stable")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64SliceVar(&params.Bounds, "bounds", params.Bounds, "min_lon,min_lat,max_lon,max_lat")
	f.StringVar(&params.StartDate, "start", params.StartDate, "start date (YYYY-MM-DD)")
	f.StringVar(&params.EndDate, "end", params.EndDate, "end date (YYYY-MM-DD)")
	f.StringVar(&params.Satellite, "satellite", params.Satellite, "satellite ("+strings.Join([]string{domain.SatelliteSentinel2, domain.SatelliteLandsat, domain.SatelliteMODIS, domain.SatelliteVIIRS}, ", ")+")")
	f.IntVar(&params.MaxCloudCover, "cloud", params.MaxCloudCover, "max cloud cover percent")
	f.IntVar(&repeats, "repeats", 3, "number of derivations to compare")
	return cmd
}
