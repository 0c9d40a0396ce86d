package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncprobe/pkg/syncprobe"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the surrogate predictor to the stored dataset",
		Long: `Fit a fresh surrogate model to every stored dataset sample and write
the checkpoint the iMP/MP strategies load.

Example:
  syncprobectl train --checkpoint surrogate.json --epochs 300`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoint, _ := cmd.Flags().GetString("checkpoint")
			epochs, _ := cmd.Flags().GetInt("epochs")
			learnRate, _ := cmd.Flags().GetFloat64("learn-rate")
			seed, _ := cmd.Flags().GetInt64("seed")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.TrainSurrogate(cmd.Context(), syncprobe.TrainRequest{
				CheckpointPath: checkpoint,
				Epochs:         epochs,
				LearnRate:      learnRate,
				Seed:           seed,
			})
			if err != nil {
				return err
			}

			fmt.Printf("checkpoint=%s\n", summary.CheckpointPath)
			fmt.Printf("mocu_samples=%d mocu_loss=%.6f\n", summary.Report.MOCUSamples, summary.Report.MOCULoss)
			fmt.Printf("remain_samples=%d remain_loss=%.6f\n", summary.Report.RemainSamples, summary.Report.RemainLoss)
			return nil
		},
	}
	cmd.Flags().String("checkpoint", "", "Checkpoint output path (default from config)")
	cmd.Flags().Int("epochs", 0, "Training epochs (default 200)")
	cmd.Flags().Float64("learn-rate", 0, "SGD learning rate (default 0.01)")
	cmd.Flags().Int64("seed", 0, "Base random seed (default from config)")
	return cmd
}
