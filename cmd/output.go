package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foresite-ag/foresite-cli/internal/output"
)

var outputCmd = &cobra.Command{
	Use:   "output",
	Short: "Summarize and load APSIM .out results",
	Long:  "Commands for reducing daily .out files to yearly summaries and exporting them.",
}

// summarize reduces every .out file in dir, reporting failed files on
// stderr.
func summarize(cmd *cobra.Command, dir string) ([]output.Summary, []output.Rule, error) {
	year, _ := cmd.Flags().GetInt("year")
	swim := cfg.Soil.SWIM
	if f := cmd.Flags().Lookup("swim"); f != nil && f.Changed {
		swim, _ = cmd.Flags().GetBool("swim")
	}
	rules := output.DefaultRules(swim)

	report, err := output.SummarizeDir(cmd.Context(), dir, output.DirOptions{
		Year:        year,
		Rules:       rules,
		Concurrency: cfg.Output.Concurrency,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", filepath.Base(res.Path), res.Err)
		}
	}
	sums := report.Summaries()
	if len(sums) == 0 {
		return nil, nil, eris.Errorf("output: no summaries in %s", dir)
	}
	return sums, rules, nil
}

// -- output summarize --

var outputSummarizeCmd = &cobra.Command{
	Use:   "summarize <dir>",
	Short: "Write yearly summaries of a run directory to CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sums, rules, err := summarize(cmd, args[0])
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("out")
		switch {
		case path == "" || path == "-":
			return output.WriteCSV(cmd.OutOrStdout(), sums, rules)
		case strings.EqualFold(filepath.Ext(path), ".xlsx"):
			return output.WriteXLSX(path, sums, rules)
		}

		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "output: create %s", path)
		}
		if err := output.WriteCSV(f, sums, rules); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		return eris.Wrapf(f.Close(), "output: close %s", path)
	},
}

// -- output load --

var outputLoadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Load yearly summaries of a run directory into Postgres",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		sums, rules, err := summarize(cmd, args[0])
		if err != nil {
			return err
		}

		table := cfg.Output.Table
		if t, _ := cmd.Flags().GetString("table"); t != "" {
			table = t
		}
		upsert := cfg.Output.Upsert
		if f := cmd.Flags().Lookup("upsert"); f.Changed {
			upsert, _ = cmd.Flags().GetBool("upsert")
		}

		n, err := loadSummaries(ctx, table, sums, rules, upsert)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rows into %s\n", n, table)
		return nil
	},
}

func loadSummaries(ctx context.Context, table string, sums []output.Summary, rules []output.Rule, upsert bool) (int64, error) {
	pool, err := connectDB(ctx)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	return output.Load(ctx, pool, table, sums, rules, upsert)
}

func init() {
	for _, c := range []*cobra.Command{outputSummarizeCmd, outputLoadCmd} {
		c.Flags().Int("year", 0, "summary year (0 = every simulated year)")
		c.Flags().Bool("swim", false, "include SWIM tile drainage columns (overrides soil.swim)")
	}
	outputSummarizeCmd.Flags().String("out", "", "output .csv or .xlsx path (default CSV on stdout)")
	outputLoadCmd.Flags().String("table", "", "target table (default output.table)")
	outputLoadCmd.Flags().Bool("upsert", false, "merge on (file_name, year) instead of appending")

	outputCmd.AddCommand(outputSummarizeCmd, outputLoadCmd)
	rootCmd.AddCommand(outputCmd)
}
