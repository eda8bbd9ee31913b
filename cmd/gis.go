package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foresite-ag/foresite-cli/internal/gis"
	"github.com/foresite-ag/foresite-cli/internal/weather"
)

var gisCmd = &cobra.Command{
	Use:   "gis",
	Short: "Join simulation results to zone layers",
}

// -- gis join --

var gisJoinCmd = &cobra.Command{
	Use:   "join <dir>",
	Short: "Join one year of .out summaries to a zone shapefile by mukey",
	Long: "Summarizes the .out files in <dir> for --year, joins them to the zones of --zones on mukey, " +
		"optionally adds the field's precipitation digest from --met, and writes a shapefile and/or loads PostGIS.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		zonesPath, _ := cmd.Flags().GetString("zones")
		metPath, _ := cmd.Flags().GetString("met")
		outPath, _ := cmd.Flags().GetString("out")
		load, _ := cmd.Flags().GetBool("load")
		year, _ := cmd.Flags().GetInt("year")

		if year == 0 {
			return eris.New("gis join: --year is required")
		}
		if outPath == "" && !load {
			return eris.New("gis join: nothing to do, give --out or --load")
		}
		if load {
			if err := cfg.Validate("load"); err != nil {
				return err
			}
		}

		zs, err := gis.ReadZones(zonesPath)
		if err != nil {
			return err
		}
		sums, rules, err := summarize(cmd, args[0])
		if err != nil {
			return err
		}

		var precip *weather.PrecipSummary
		if metPath != "" {
			f, err := os.Open(metPath)
			if err != nil {
				return eris.Wrapf(err, "gis join: open %s", metPath)
			}
			m, err := weather.ReadMet(f)
			f.Close() //nolint:errcheck
			if err != nil {
				return err
			}
			s := m.PrecipStats(year)
			precip = &s
		}

		j := gis.Join(zs, sums, rules, precip)
		if len(j.Features) == 0 {
			return eris.New("gis join: no zone matched a summary mukey")
		}

		if outPath != "" {
			if err := gis.WriteShapefile(outPath, j); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d features to %s\n", len(j.Features), outPath)
		}
		if load {
			pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			table := cfg.GIS.Table
			if t, _ := cmd.Flags().GetString("table"); t != "" {
				table = t
			}
			n, err := gis.Load(ctx, pool, table, j)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d features into %s\n", n, table)
		}
		return nil
	},
}

func init() {
	gisJoinCmd.Flags().String("zones", "", "zone shapefile (.shp or .zip) with a mukey field (required)")
	_ = gisJoinCmd.MarkFlagRequired("zones")
	gisJoinCmd.Flags().Int("year", 0, "summary year (required)")
	gisJoinCmd.Flags().String("met", "", "field .met file for precipitation columns")
	gisJoinCmd.Flags().String("out", "", "output shapefile path")
	gisJoinCmd.Flags().Bool("load", false, "copy the joined layer into gis.table")
	gisJoinCmd.Flags().String("table", "", "target table (default gis.table)")
	gisJoinCmd.Flags().Bool("swim", false, "include SWIM tile drainage columns (overrides soil.swim)")

	gisCmd.AddCommand(gisJoinCmd)
	rootCmd.AddCommand(gisCmd)
}
