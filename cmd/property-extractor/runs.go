// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/property-extractor/internal/telemetry"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List tracked extraction runs, or the metrics of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().String("telemetry-dir", "", "telemetry directory (default: .telemetry)")
	viper.BindPFlag("telemetry.dir", runsCmd.Flags().Lookup("telemetry-dir"))
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	tracker, err := telemetry.OpenLocal(viper.GetString("telemetry.dir"))
	if err != nil {
		return err
	}
	defer tracker.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(args) == 1 {
		metrics, err := tracker.Metrics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "STEP\tMETRIC\tVALUE")
		for _, m := range metrics {
			fmt.Fprintf(tw, "%d\t%s\t%g\n", m.Step, m.Name, m.Value)
		}
		return nil
	}

	runs, err := tracker.Runs(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tPROJECT\tNAME\tSTARTED\tSTEPS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Project, r.Name, r.StartedAt.Format("2006-01-02 15:04:05"), r.Steps)
	}
	return nil
}
