// syncprobectl drives sequential experiment design for uncertain coupled
// oscillator networks: single runs, strategy sweeps, surrogate dataset
// generation and training, and run reporting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"syncprobe/internal/config"
	"syncprobe/internal/logging"
	"syncprobe/pkg/syncprobe"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncprobectl",
		Short: "Sequential experiment design for coupled oscillator networks",
		Long: `syncprobectl reduces coupling uncertainty in a Kuramoto oscillator
network by choosing which pair to probe next. Strategies are compared by
the objective cost of the uncertainty that remains after each probe.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: debug, info, warn, error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newExperimentCmd(),
		newDatasetCmd(),
		newTrainCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("syncprobectl version %s\n", version)
		},
	}
}

// newClient loads configuration and assembles a client. The caller owns
// Close.
func newClient(cmd *cobra.Command) (*syncprobe.Client, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	log := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	client, err := syncprobe.New(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
