package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/dispute-assistant/internal/cli"
	"github.com/Veraticus/dispute-assistant/internal/engine"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show summary statistics for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bindFlags(cmd, map[string]string{"out": "output.dir"})
			runID, _ := cmd.Flags().GetString("run")
			fromCSV, _ := cmd.Flags().GetBool("from-csv")
			formatFlag, _ := cmd.Flags().GetString("format")

			format, err := cli.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			records, label, err := loadRecords(cmd.Context(), settings, recordSource{runID: runID, fromCSV: fromCSV})
			if err != nil {
				return err
			}
			return cli.RenderSummary(cmd.OutOrStdout(), "Summary of "+label, engine.Summarize(records), format)
		},
	}

	cmd.Flags().String("run", "", "run id (default: latest run)")
	cmd.Flags().Bool("from-csv", false, "read the output CSV files instead of the run history")
	cmd.Flags().String("out", "", "output directory to read with --from-csv (default: output)")
	cmd.Flags().StringP("format", "f", "table", "output format (table, json)")

	return cmd
}
