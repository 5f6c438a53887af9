package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-agent/internal/pipeline"
)

var rollupOut string

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Export quarterly counts per company and category",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		updates, err := env.Updates.Load()
		if err != nil {
			return err
		}

		rows := pipeline.Rollup(updates, cfg.Merge.Policy())

		out := rollupOut
		if out == "" {
			out = filepath.Join(cfg.Data.ExportsDir(),
				fmt.Sprintf("rollup_%s.csv", time.Now().UTC().Format("20060102")))
		}
		if err := pipeline.WriteRollup(out, rows); err != nil {
			return err
		}
		fmt.Printf("Wrote %d rollup rows to %s\n", len(rows), out)
		return nil
	},
}

func init() {
	rollupCmd.Flags().StringVar(&rollupOut, "out", "", "output CSV path (default exports/rollup_<date>.csv)")
	rootCmd.AddCommand(rollupCmd)
}
