package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check availability of every enabled source",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		statuses := eng.aggregator.ProbeAll(cmd.Context())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	},
}

var breakersCmd = &cobra.Command{
	Use:   "breakers",
	Short: "Print the circuit breaker snapshot for every source",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(eng.aggregator.BreakerSnapshots())
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(breakersCmd)
}
