package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/ledger"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Crawl competitor sites and append new updates to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		release, err := ledger.Lock(cfg.Data.LockFile())
		if err != nil {
			if eris.Is(err, ledger.ErrLocked) {
				return eris.New("scan: another scan is already running (remove " + cfg.Data.LockFile() + " if stale)")
			}
			return err
		}
		defer release()

		summary, err := env.Scanner.Run(cmd.Context())
		fmt.Printf("Scan complete: %d new, %d duplicates, %d errors in %s\n",
			summary.New, summary.Duplicates, summary.Errors, summary.Duration.Round(time.Second))
		for company, n := range summary.PerCompany {
			fmt.Printf("  %s: %d new\n", company, n)
		}
		if err != nil {
			return err
		}

		if err := syncMirror(cmd.Context(), env); err != nil {
			zap.L().Warn("scan: mirror sync failed", zap.Error(err))
		}
		return nil
	},
}

// syncMirror rebuilds the sqlite analytics mirror from the canonical ledger.
// The mirror is derived data; failures never fail the scan.
func syncMirror(ctx context.Context, env *pipelineEnv) error {
	rows, err := env.Updates.Load()
	if err != nil {
		return err
	}

	mirror, err := ledger.OpenMirror(cfg.Data.MirrorDB())
	if err != nil {
		return err
	}
	defer mirror.Close()

	return mirror.Sync(ctx, rows)
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
