package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncprobe/pkg/syncprobe"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored runs by strategy",
		Long: `Aggregate stored run records into a per-strategy table and optionally
render the mean MOCU-per-step comparison plot.

Example:
  syncprobectl report --plot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runIDs, _ := cmd.Flags().GetStringSlice("runs")
			plot, _ := cmd.Flags().GetBool("plot")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Report(cmd.Context(), syncprobe.ReportRequest{
				RunIDs: runIDs,
				Plot:   plot,
			})
			if err != nil {
				return err
			}

			for _, s := range summary.Strategies {
				fmt.Printf("strategy=%s runs=%d mean_initial=%.6f mean_final=%.6f mean_elapsed_ms=%.1f fallbacks=%d\n",
					s.Strategy, s.Runs, s.MeanInitial, s.MeanFinal, s.MeanElapsedMS, s.TotalFallbacks)
			}
			if summary.PlotPath != "" {
				fmt.Printf("plot=%s\n", summary.PlotPath)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("runs", nil, "Run ids to include (default: every stored run)")
	cmd.Flags().Bool("plot", false, "Render the comparison plot")
	return cmd
}
