package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianbio/pharma-research/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pharma-research",
	Short: "Pharmaceutical news research pipeline",
	Long:  "Fans keyword queries out to PubMed, Exa, Tavily and NewsAPI, deduplicates and date-filters the results, scores them for relevance with an LLM, and emits highlighted articles plus run metadata.",
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
