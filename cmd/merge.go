package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-agent/internal/pipeline"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <batch_csv>",
	Short: "Reconcile a batch CSV into the canonical update ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		result, err := pipeline.MergeBatch(env.Updates, args[0], cfg.Merge.Policy())
		if err != nil {
			return err
		}
		fmt.Printf("Merge complete: %d added, %d replaced, %d kept\n",
			result.Added, result.Replaced, result.Kept)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
