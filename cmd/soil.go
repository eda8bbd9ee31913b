package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
	"github.com/foresite-ag/foresite-cli/internal/gis"
	"github.com/foresite-ag/foresite-cli/internal/ssurgo"
)

var soilCmd = &cobra.Command{
	Use:   "soil [mukey...]",
	Short: "Build APSIM Soil XML for SSURGO map units",
	Long:  "Resamples SSURGO horizons onto the 16 APSIM layers and writes one <mukey>.xml Soil element per map unit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("soil"); err != nil {
			return err
		}

		zones, _ := cmd.Flags().GetString("zones")
		outDir, _ := cmd.Flags().GetString("out")

		mukeys := append([]string(nil), args...)
		if zones != "" {
			zs, err := gis.ReadZones(zones)
			if err != nil {
				return err
			}
			mukeys = append(mukeys, zs.Mukeys()...)
		}
		if len(mukeys) == 0 {
			return eris.New("soil: give mukeys as arguments or --zones")
		}

		src, closeSrc, err := openSource(ctx)
		if err != nil {
			return err
		}
		defer closeSrc()

		profiles, failed, err := ssurgo.Profiles(ctx, src, mukeys, soilOptions(cmd))
		if err != nil {
			return eris.Wrap(err, "soil")
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "soil: create %s", outDir)
		}

		keys := make([]string, 0, len(profiles))
		for mk := range profiles {
			keys = append(keys, mk)
		}
		sort.Strings(keys)

		for _, mk := range keys {
			path := filepath.Join(outDir, mk+".xml")
			if err := writeSoil(path, profiles[mk].XML()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}

		if len(failed) > 0 {
			bad := make([]string, 0, len(failed))
			for mk, ferr := range failed {
				zap.L().Warn("soil: profile failed", zap.String("mukey", mk), zap.Error(ferr))
				bad = append(bad, mk)
			}
			sort.Strings(bad)
			fmt.Fprintf(cmd.ErrOrStderr(), "%d map units failed: %s\n", len(bad), strings.Join(bad, ", "))
		}
		return nil
	},
}

func writeSoil(path string, n *apsimxml.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "soil: create %s", path)
	}
	if err := apsimxml.Encode(f, n, false); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "soil: encode %s", path)
	}
	return eris.Wrapf(f.Close(), "soil: close %s", path)
}

func init() {
	soilCmd.Flags().String("zones", "", "zone shapefile (.shp or .zip) whose mukey field lists the map units")
	soilCmd.Flags().String("out", ".", "output directory")
	soilCmd.Flags().Bool("swim", false, "emit a Swim block and drainage KS (overrides soil.swim)")
	soilCmd.Flags().Bool("saxton-rawls", false, "derive water parameters from texture (overrides soil.saxton_rawls)")
	rootCmd.AddCommand(soilCmd)
}
