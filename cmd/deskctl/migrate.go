package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  `Run every migrations/*.sql file against POSTGRES_DSN in lexical order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required")
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()

			return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", persistence.DefaultMigrationsDir, "Directory holding *.sql files")
	return cmd
}
