package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncprobe/pkg/syncprobe"
)

func newExperimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Sweep several strategies over repeated seeds",
		Long: `Run every requested strategy a number of times and render the mean
MOCU-per-step comparison plot. Progress is checkpointed after each run;
rerunning with the same --id resumes an interrupted sweep.

Example:
  syncprobectl experiment --strategies iODE,ENTROPY,RANDOM --repeats 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			strategies, _ := cmd.Flags().GetStringSlice("strategies")
			repeats, _ := cmd.Flags().GetInt("repeats")
			steps, _ := cmd.Flags().GetInt("steps")
			seed, _ := cmd.Flags().GetInt64("seed")
			notes, _ := cmd.Flags().GetString("notes")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Experiment(cmd.Context(), syncprobe.ExperimentRequest{
				ExperimentID: id,
				Strategies:   strategies,
				Repeats:      repeats,
				Steps:        steps,
				Seed:         seed,
				Notes:        notes,
			})
			if err != nil {
				return err
			}

			fmt.Printf("experiment_id=%s runs=%d/%d\n", summary.ExperimentID, summary.RunsDone, summary.TotalRuns)
			fmt.Printf("plot=%s\n", summary.PlotPath)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Experiment id to resume (empty starts a new sweep)")
	cmd.Flags().StringSlice("strategies", nil, "Strategies to compare (default iODE,ENTROPY,RANDOM)")
	cmd.Flags().Int("repeats", 1, "Runs per strategy")
	cmd.Flags().Int("steps", 0, "Experiment step budget per run (default from config)")
	cmd.Flags().Int64("seed", 0, "Base random seed (default from config)")
	cmd.Flags().String("notes", "", "Free-form note stored on the experiment record")
	return cmd
}
