package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "datatrace",
	Short: "Multi-source personal data search aggregator",
	Long:  "Fans a single search query out across independent data-search APIs, normalizes their responses into one record model, and returns a ranked aggregate with per-source circuit breaking and retries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
