package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncprobe/pkg/syncprobe"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one sequential design run",
		Long: `Execute one sequential design run with the chosen strategy.

Strategies: iODE, ODE (direct Monte Carlo), iMP, MP (surrogate with
direct fallback), ENTROPY (widest interval first), RANDOM.

Example:
  syncprobectl run --strategy iODE --steps 4 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategyName, _ := cmd.Flags().GetString("strategy")
			steps, _ := cmd.Flags().GetInt("steps")
			seed, _ := cmd.Flags().GetInt64("seed")
			policy, _ := cmd.Flags().GetString("update-policy")
			if strategyName == "" {
				return fmt.Errorf("--strategy is required")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), syncprobe.RunRequest{
				Strategy:     strategyName,
				Steps:        steps,
				Seed:         seed,
				UpdatePolicy: policy,
			})
			if err != nil {
				return err
			}

			fmt.Printf("run_id=%s strategy=%s steps=%d terminated=%s\n",
				summary.RunID, summary.Strategy, summary.Steps, summary.Terminated)
			fmt.Printf("initial_mocu=%.6f final_mocu=%.6f\n", summary.InitialMOCU, summary.FinalMOCU)
			fmt.Printf("trajectory=%s\n", summary.TrajectoryPath)
			return nil
		},
	}
	cmd.Flags().String("strategy", "", "Selection strategy: iODE, ODE, iMP, MP, ENTROPY, RANDOM")
	cmd.Flags().Int("steps", 0, "Experiment step budget (default from config)")
	cmd.Flags().Int64("seed", 0, "Base random seed (default from config)")
	cmd.Flags().String("update-policy", "", "Bound update policy: threshold or exact")
	return cmd
}
