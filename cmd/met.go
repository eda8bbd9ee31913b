package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/gis"
	"github.com/foresite-ag/foresite-cli/internal/ssurgo"
	"github.com/foresite-ag/foresite-cli/internal/weather"
)

var metCmd = &cobra.Command{
	Use:   "met",
	Short: "Convert Daymet weather into an APSIM .met file",
	Long: "Reads a Daymet single-pixel CSV (--daymet) or a stored design-weather sample (--sample-id) " +
		"and writes an APSIM .met file with tav/amp constants, leap-day fill and rain/snow split.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		daymetPath, _ := cmd.Flags().GetString("daymet")
		sampleID, _ := cmd.Flags().GetString("sample-id")
		outPath, _ := cmd.Flags().GetString("out")
		station, _ := cmd.Flags().GetString("station")
		stats, _ := cmd.Flags().GetBool("stats")

		var d *weather.Daymet
		switch {
		case daymetPath != "" && sampleID != "":
			return eris.New("met: use either --daymet or --sample-id")
		case daymetPath != "":
			f, err := os.Open(daymetPath)
			if err != nil {
				return eris.Wrapf(err, "met: open %s", daymetPath)
			}
			defer f.Close() //nolint:errcheck
			d, err = weather.ReadDaymetCSV(ctx, f)
			if err != nil {
				return err
			}
		case sampleID != "":
			lat, lon, err := fieldLocation(cmd)
			if err != nil {
				return err
			}
			pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			d, err = ssurgo.NewPostgresSource(pool, cfg.Database.WeatherTable).Daymet(ctx, sampleID, lat, lon)
			if err != nil {
				return err
			}
		default:
			return eris.New("met: --daymet or --sample-id is required")
		}

		m := weather.FromDaymet(d)
		if station != "" {
			m.Station = station
		}

		out, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "met: create %s", outPath)
		}
		if err := weather.WriteMet(out, m); err != nil {
			out.Close() //nolint:errcheck
			return err
		}
		if err := out.Close(); err != nil {
			return eris.Wrapf(err, "met: close %s", outPath)
		}

		zap.L().Info("met file written",
			zap.String("path", outPath),
			zap.Int("days", len(m.Days)),
		)
		if stats {
			formatPrecip(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

// fieldLocation returns --lat/--lon when given, otherwise the centroid of
// the --zones layer.
func fieldLocation(cmd *cobra.Command) (lat, lon float64, err error) {
	lat, _ = cmd.Flags().GetFloat64("lat")
	lon, _ = cmd.Flags().GetFloat64("lon")
	zones, _ := cmd.Flags().GetString("zones")
	if zones == "" || cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		return lat, lon, nil
	}

	zs, err := gis.ReadZones(zones)
	if err != nil {
		return 0, 0, err
	}
	lat, lon, err = gis.LayerCentroid(zs)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "met: locate %s", zones)
	}
	zap.L().Debug("met: field location from zones",
		zap.String("zones", zones),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
	)
	return lat, lon, nil
}

func formatPrecip(w io.Writer, m *weather.Met) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "YEAR\tANNUAL")
	for _, mon := range weather.SeasonMonths {
		fmt.Fprintf(tw, "\t%s", mon.String()[:3])
	}
	fmt.Fprintln(tw, "\tEVENT 1\tEVENT 2")

	seen := make(map[int]bool)
	for _, d := range m.Days {
		if seen[d.Year] {
			continue
		}
		seen[d.Year] = true
		s := m.PrecipStats(d.Year)
		fmt.Fprintf(tw, "%d\t%.1f", s.Year, s.Annual)
		for _, mon := range weather.SeasonMonths {
			fmt.Fprintf(tw, "\t%.1f", s.Monthly[mon])
		}
		for i := 0; i < 2; i++ {
			if i < len(s.Events) {
				e := s.Events[i]
				fmt.Fprintf(tw, "\t%.1f (%d-%d)", e.Rain, e.FirstDay, e.LastDay)
			} else {
				fmt.Fprint(tw, "\t-")
			}
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func init() {
	metCmd.Flags().String("daymet", "", "Daymet single-pixel CSV")
	metCmd.Flags().String("sample-id", "", "design weather sample id in the database")
	metCmd.Flags().Float64("lat", 0, "latitude of the weather sample")
	metCmd.Flags().Float64("lon", 0, "longitude of the weather sample")
	metCmd.Flags().String("zones", "", "zone shapefile whose centroid locates the sample when --lat/--lon are not given")
	metCmd.Flags().String("station", "", "station name written to the header")
	metCmd.Flags().String("out", "weather.met", "output .met path")
	metCmd.Flags().Bool("stats", false, "print yearly precipitation statistics")
	rootCmd.AddCommand(metCmd)
}
