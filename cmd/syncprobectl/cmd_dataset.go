package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncprobe/pkg/syncprobe"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Generate labeled samples for surrogate training",
		Long: `Label random uncertainty states (and candidate pairs) with direct
Monte Carlo values and store them for surrogate training.

Example:
  syncprobectl dataset --mocu-samples 500 --remain-samples 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mocuSamples, _ := cmd.Flags().GetInt("mocu-samples")
			remainSamples, _ := cmd.Flags().GetInt("remain-samples")
			seed, _ := cmd.Flags().GetInt64("seed")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.GenerateDataset(cmd.Context(), syncprobe.DatasetRequest{
				MOCUSamples:   mocuSamples,
				RemainSamples: remainSamples,
				Seed:          seed,
			})
			if err != nil {
				return err
			}

			fmt.Printf("mocu_samples=%d remain_samples=%d\n", summary.MOCUSamples, summary.RemainSamples)
			return nil
		},
	}
	cmd.Flags().Int("mocu-samples", 200, "Number of plain MOCU samples")
	cmd.Flags().Int("remain-samples", 200, "Number of expected-remaining samples")
	cmd.Flags().Int64("seed", 0, "Base random seed (default from config)")
	return cmd
}
