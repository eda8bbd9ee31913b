package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foresite-ag/foresite-cli/internal/runs"
)

var generateCmd = &cobra.Command{
	Use:   "generate <plan>",
	Short: "Write .apsim files for a batch plan",
	Long: "Reads a run plan (YAML, CSV or XLSX), builds soil profiles and management schedules, " +
		"and writes one .apsim file per field, rotation, end year and map unit under <root>/apsim_files.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		opts := soilOptions(cmd)
		defaults := runs.Plan{
			Root:        cfg.Plan.Root,
			MetFolder:   cfg.Plan.MetFolder,
			Window:      cfg.Simulation.Window,
			SWIM:        opts.SWIM,
			SaxtonRawls: opts.SaxtonRawls,
		}
		if root, _ := cmd.Flags().GetString("root"); root != "" {
			defaults.Root = root
		}
		if mf, _ := cmd.Flags().GetString("met-folder"); mf != "" {
			defaults.MetFolder = mf
		}

		plan, err := runs.LoadPlan(ctx, args[0], defaults)
		if err != nil {
			return err
		}

		exp, err := newExpander()
		if err != nil {
			return err
		}

		concurrency := cfg.Batch.Concurrency
		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			concurrency = n
		}

		src, closeSrc, err := openSource(ctx)
		if err != nil {
			return err
		}
		defer closeSrc()

		gen := &runs.Generator{
			Source:      src,
			Expander:    exp,
			SimName:     cfg.Simulation.Name,
			Variables:   cfg.Simulation.Variables,
			SoilCrops:   opts.Crops,
			Concurrency: concurrency,
		}
		report, err := gen.Generate(ctx, plan)
		if report != nil {
			formatReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			return err
		}
		if failed := len(report.Failed()); failed > 0 && report.Written() == 0 {
			return eris.Errorf("generate: all %d items failed", failed)
		}
		return nil
	},
}

func formatReport(w io.Writer, r *runs.Report) {
	fmt.Fprintf(w, "Batch %s: %d written, %d failed\n", r.BatchID, r.Written(), len(r.Failed()))
	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMUKEY\tERROR")
	for _, res := range failed {
		mk := res.Mukey
		if mk == "" {
			mk = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\n", res.Run, mk, res.Err)
	}
	_ = tw.Flush()
}

func init() {
	generateCmd.Flags().String("root", "", "project root (overrides plan.root)")
	generateCmd.Flags().String("met-folder", "", "folder under <root>/met_files holding the weather files")
	generateCmd.Flags().Int("concurrency", 0, "parallel file writers (default batch.concurrency)")
	generateCmd.Flags().Bool("swim", false, "use the SWIM water model (overrides soil.swim)")
	generateCmd.Flags().Bool("saxton-rawls", false, "derive water parameters from texture (overrides soil.saxton_rawls)")
	rootCmd.AddCommand(generateCmd)
}
