package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/catalogsearch/internal/repository/catalog"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog schema migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			if err := catalog.RunMigrations(c.cfg.Catalog.DSN); err != nil {
				return fmt.Errorf("migrate catalog: %w", err)
			}
			c.logger.Info("Catalog migrations applied")
			return nil
		},
	}
}
