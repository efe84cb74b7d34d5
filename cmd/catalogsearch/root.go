package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/config"
	logpkg "github.com/kailas-cloud/catalogsearch/internal/logger"
)

// cli carries what every subcommand needs after PersistentPreRunE.
type cli struct {
	env     string
	envFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "catalogsearch",
		Short: "Product catalog search with AI reformulation and fallback",
		Long: `catalogsearch answers free-text product queries against a Postgres catalog.
It tries AI reformulation with embedding search first and falls back to
heuristic and plain text strategies when the AI provider is unavailable.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}

	root.PersistentFlags().StringVarP(&c.env, "env", "e", "", "config environment (default: $ENV or local)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(newServeCmd(c), newMigrateCmd(c), newReindexCmd(c))
	return root
}

func (c *cli) init() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}

	if c.env == "" {
		c.env = config.GetEnv()
	}

	cfg, err := config.Load(c.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	logger, err := logpkg.NewLogger(c.env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	c.logger = logger
	return nil
}
