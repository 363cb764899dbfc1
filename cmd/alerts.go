package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridianbio/pharma-research/internal/metadata"
)

var alertsRecentN int

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect the run metadata log",
}

var alertsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := metadata.RecentRuns(cfg.Metadata.Path, alertsRecentN)
		if err != nil {
			return eris.Wrap(err, "read metadata log")
		}
		return printJSON(runs)
	},
}

var alertsStrategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Aggregate strategy performance across all runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		rollups, err := metadata.StrategyPerformance(cfg.Metadata.Path)
		if err != nil {
			return eris.Wrap(err, "read metadata log")
		}
		return printJSON(rollups)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	alertsRecentCmd.Flags().IntVar(&alertsRecentN, "n", 10, "number of runs to show")
	alertsCmd.AddCommand(alertsRecentCmd)
	alertsCmd.AddCommand(alertsStrategiesCmd)
	rootCmd.AddCommand(alertsCmd)
}
