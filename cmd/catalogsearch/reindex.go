package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReindexCmd(c *cli) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed every catalog product once and exit",
		Long: `reindex runs one indexing pass over the whole catalog. Failed batches are
reported but do not fail the command; it exits non-zero only when the
catalog cannot be read or the run is interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.vectors.Reset(ctx); err != nil {
					return fmt.Errorf("reset vector index: %w", err)
				}
				c.logger.Info("Vector index reset")
			}

			report, err := a.indexer.IndexAll(ctx)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			if report.Aborted {
				c.logger.Warn("Reindex aborted by quota", zap.String("run_id", report.RunID))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "drop and recreate the vector index first")
	return cmd
}
