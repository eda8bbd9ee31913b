package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foresite-ag/foresite-cli/internal/ingest"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
)

var rotationCmd = &cobra.Command{
	Use:   "rotation [year:crop...]",
	Short: "Classify a crop history as cfs, sfc, cc or other",
	Long: "Classifies a field's crop history, given as year:crop arguments or as a --history table " +
		"(CSV or XLSX with year and crop columns, optionally field to classify several fields).",
	RunE: func(cmd *cobra.Command, args []string) error {
		histories := make(map[string][]mgmt.CropYear)

		if path, _ := cmd.Flags().GetString("history"); path != "" {
			tbl, err := ingest.ReadTable(cmd.Context(), path)
			if err != nil {
				return err
			}
			for i := range tbl.Rows {
				year, err := strconv.Atoi(strings.TrimSpace(tbl.Get(i, "year")))
				if err != nil {
					return eris.Wrapf(err, "rotation: row %d year", i+2)
				}
				field := tbl.Get(i, "field")
				histories[field] = append(histories[field], mgmt.CropYear{Year: year, Crop: tbl.Get(i, "crop")})
			}
		}
		for _, a := range args {
			y, crop, ok := strings.Cut(a, ":")
			if !ok {
				return eris.Errorf("rotation: %q is not year:crop", a)
			}
			year, err := strconv.Atoi(y)
			if err != nil {
				return eris.Wrapf(err, "rotation: %q", a)
			}
			histories[""] = append(histories[""], mgmt.CropYear{Year: year, Crop: crop})
		}
		if len(histories) == 0 {
			return eris.New("rotation: no crop history given")
		}

		if len(histories) == 1 {
			for _, h := range histories {
				fmt.Fprintln(cmd.OutOrStdout(), mgmt.DetectRotation(h))
			}
			return nil
		}

		fields := make([]string, 0, len(histories))
		for f := range histories {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tYEARS\tROTATION")
		for _, f := range fields {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", f, len(histories[f]), mgmt.DetectRotation(histories[f]))
		}
		return tw.Flush()
	},
}

func init() {
	rotationCmd.Flags().String("history", "", "crop history table (.csv or .xlsx)")
	rootCmd.AddCommand(rotationCmd)
}
