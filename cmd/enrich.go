package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Classify unenriched updates with summary, category, and impact",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		result, err := env.Enricher.Run(cmd.Context(), enrichLimit)
		fmt.Printf("Enriched %d of %d pending updates\n", result.Enriched, result.Considered)
		return err
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max updates to enrich this run (0 = all pending)")
	rootCmd.AddCommand(enrichCmd)
}
