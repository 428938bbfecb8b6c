package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/config"
	"github.com/spec-kit/warranty-portal/internal/observability"
	"github.com/spec-kit/warranty-portal/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withMigrator(func(ctx context.Context, m *persistence.Migrator) error {
		return m.Up(ctx)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withMigrator(func(ctx context.Context, m *persistence.Migrator) error {
		return m.Down(ctx)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print applied and pending migrations",
	RunE: withMigrator(func(ctx context.Context, m *persistence.Migrator) error {
		states, err := m.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tAPPLIED\tFILE")
		for _, s := range states {
			fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Path)
		}
		return w.Flush()
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(fn func(ctx context.Context, m *persistence.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err := observability.NewLogger(cfg.Logger, cfg.App)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()

		migrator, err := persistence.NewMigrator(pg.PoolHandle(), logger)
		if err != nil {
			return fmt.Errorf("migrator: %w", err)
		}
		defer func() {
			if cerr := migrator.Close(); cerr != nil {
				logger.Warn("close migrator", zap.Error(cerr))
			}
		}()
		if err := fn(ctx, migrator); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	}
}
