package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atsushimemet/fridge-predictor/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Predicts whether an item is still in the fridge",
	Long: "predictor looks up the probability that a purchased item is still in the refrigerator, " +
		"from a table keyed by category and days since the last purchase.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig reads and validates configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
